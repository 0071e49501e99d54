package server

import (
	"context"
	"time"

	"github.com/prometheus/procfs"

	"github.com/nubi-io/nubi/internal/fanout"
	"github.com/nubi-io/nubi/internal/model"
	"github.com/nubi-io/nubi/internal/nginx"
	"github.com/nubi-io/nubi/internal/store"
)

// ProducerConfig names the fixed external inputs the Fanout's three event
// producers read from: the Nginx Supervisor's invocations and stub-status
// scrape, procfs for process/network stats, and the State Store's
// maintenance singleton.
type ProducerConfig struct {
	Store            *store.Store
	Supervisor       *nginx.Supervisor
	ProcFS           procfs.FS
	StubStatusURL    string
	NetworkInterface string
	PidFile          string
	StartedAt        time.Time
}

// BuildProducers assembles the fanout.Producers driving the nginx_status,
// maintenance_mode, and metrics events, matching the payload shapes fixed
// by spec.md §6's subscriber event schema.
func BuildProducers(cfg ProducerConfig) fanout.Producers {
	return fanout.Producers{
		NginxStatus: func(ctx context.Context) (any, error) {
			return nginxStatusPayload(ctx, cfg), nil
		},
		MaintenanceMode: func(ctx context.Context) (any, error) {
			m := cfg.Store.GetMaintenance()
			return map[string]any{
				"enabled": m.Enabled,
				"message": m.Message,
			}, nil
		},
		Metrics: func(ctx context.Context) (any, error) {
			return metricsPayload(ctx, cfg), nil
		},
	}
}

func nginxStatusPayload(ctx context.Context, cfg ProducerConfig) map[string]any {
	validate, _ := cfg.Supervisor.Validate(ctx)
	version, _ := cfg.Supervisor.Version(ctx)
	_, err := nginx.ScrapeStubStatus(ctx, cfg.StubStatusURL)

	return map[string]any{
		"running":     err == nil,
		"configValid": validate.OK,
		"version":     version.Output,
	}
}

func metricsPayload(ctx context.Context, cfg ProducerConfig) model.MetricsSnapshot {
	status, _ := nginx.ScrapeStubStatus(ctx, cfg.StubStatusURL)
	uptime, uptimeStr, _ := nginx.ProcessUptime(cfg.ProcFS, cfg.PidFile)
	net := nginx.ReadNetCounters(cfg.ProcFS, cfg.NetworkInterface)

	return model.MetricsSnapshot{
		ActiveConnections: status.Active,
		Reading:           status.Reading,
		Writing:           status.Writing,
		Waiting:           status.Waiting,
		Accepts:           status.Accepts,
		Handled:           status.Handled,
		Requests:          status.Requests,
		NginxUptime:       uptime,
		NginxUptimeString: uptimeStr,
		RXBytes:           net.RXBytes,
		TXBytes:           net.TXBytes,
		DaemonUptime:      int64(time.Since(cfg.StartedAt).Seconds()),
	}
}
