package nginx

import (
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

const assumedTicksPerSecond = 100

// DefaultPidFile is nginx's standard pidfile location, used when no
// override is configured.
const DefaultPidFile = "/var/run/nginx.pid"

// ProcessUptime reads pidPath, then /proc/<pid>/stat field 22 (starttime in
// clock ticks since boot) and /proc/uptime (seconds since boot), and
// computes uptime = systemUptime − startTicks/ticksPerSecond. Any missing
// file yields ("unknown", false) rather than a wrong number.
func ProcessUptime(fs procfs.FS, pidPath string) (seconds int64, display string, ok bool) {
	pid, err := readPidFile(pidPath)
	if err != nil {
		return 0, "unknown", false
	}

	proc, err := fs.Proc(pid)
	if err != nil {
		return 0, "unknown", false
	}
	procStat, err := proc.Stat()
	if err != nil {
		return 0, "unknown", false
	}

	stat, err := fs.Stat()
	if err != nil {
		return 0, "unknown", false
	}
	bootTime := stat.BootTime

	now, err := readUptimeSeconds()
	if err != nil {
		return 0, "unknown", false
	}

	startSeconds := float64(procStat.Starttime) / assumedTicksPerSecond
	systemUptime := now
	_ = bootTime // bootTime corroborates /proc/uptime but is not otherwise needed here

	up := systemUptime - startSeconds
	if up < 0 {
		return 0, "unknown", false
	}
	return int64(up), formatDuration(int64(up)), true
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func readUptimeSeconds() (float64, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, os.ErrInvalid
	}
	return strconv.ParseFloat(fields[0], 64)
}

func formatDuration(seconds int64) string {
	d := seconds
	days := d / 86400
	d %= 86400
	hours := d / 3600
	d %= 3600
	minutes := d / 60
	secs := d % 60
	i := strconv.FormatInt
	if days > 0 {
		return i(days, 10) + "d" + i(hours, 10) + "h" + i(minutes, 10) + "m"
	}
	if hours > 0 {
		return i(hours, 10) + "h" + i(minutes, 10) + "m" + i(secs, 10) + "s"
	}
	return i(minutes, 10) + "m" + i(secs, 10) + "s"
}

// NetCounters is the subset of an interface's /proc/net/dev counters Nubi
// reports.
type NetCounters struct {
	RXBytes   uint64
	RXPackets uint64
	TXBytes   uint64
	TXPackets uint64
}

// ReadNetCounters locates iface in /proc/net/dev via procfs. A missing
// interface or unreadable file yields a zero-valued NetCounters, not an
// error.
func ReadNetCounters(fs procfs.FS, iface string) NetCounters {
	netDev, err := fs.NetDev()
	if err != nil {
		return NetCounters{}
	}
	line, ok := netDev[iface]
	if !ok {
		return NetCounters{}
	}
	return NetCounters{
		RXBytes:   line.RxBytes,
		RXPackets: line.RxPackets,
		TXBytes:   line.TxBytes,
		TXPackets: line.TxPackets,
	}
}
