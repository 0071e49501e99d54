// Command nubid is the Nubi daemon: it owns the State Store, Filesystem
// Reconciler, Nginx Supervisor, Orchestrator, ACME Agent, Telemetry
// Fanout, audit trail, and HTTP/WebSocket surface, and runs until the
// listener exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/procfs"

	"github.com/nubi-io/nubi/internal/acme"
	"github.com/nubi-io/nubi/internal/audit"
	"github.com/nubi-io/nubi/internal/config"
	"github.com/nubi-io/nubi/internal/fanout"
	"github.com/nubi-io/nubi/internal/nginx"
	"github.com/nubi-io/nubi/internal/orchestrator"
	"github.com/nubi-io/nubi/internal/reconcile"
	"github.com/nubi-io/nubi/internal/server"
	"github.com/nubi-io/nubi/internal/store"
	"github.com/nubi-io/nubi/pkg/version"
)

const renewalScanInterval = 6 * time.Hour

func main() {
	addr := flag.String("addr", "", "HTTP/WebSocket listen address (default :8080)")
	static := flag.String("static", "", "UI asset directory to serve, if any")
	nginxBin := flag.String("nginx-bin", "", "override the nginx binary path")
	configPath := flag.String("config", "", "path to an optional YAML bootstrap file")
	useStagingACME := flag.Bool("acme-staging", false, "use the Let's Encrypt staging directory")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("nubid %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFile(*configPath, cfg)
		if err != nil {
			slog.Error("failed to load config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *static != "" {
		cfg.Static = *static
	}
	if *nginxBin != "" {
		cfg.NginxBin = *nginxBin
	}
	if *useStagingACME {
		cfg.ACMEDirectoryURL = "staging"
	}

	slog.Info("starting nubid",
		"version", version.Version,
		"addr", cfg.Addr,
		"dataDir", cfg.DataDir,
		"nginxBin", cfg.NginxBin,
	)

	rec, err := reconcile.New(
		cfg.NginxSitesAvailable,
		cfg.NginxSitesEnabled,
		cfg.DataDir,
		filepath.Join(cfg.DataDir, "html"),
		filepath.Join(cfg.DataDir, "certs"),
	)
	if err != nil {
		slog.Error("failed to initialize filesystem reconciler", "error", err)
		os.Exit(1)
	}

	idGen := uuid.NewString

	st, err := store.New(rec, idGen)
	if err != nil {
		slog.Error("failed to initialize state store", "error", err)
		os.Exit(1)
	}

	sup := nginx.New(cfg.NginxBin)

	trail, err := audit.Open(context.Background(), cfg.AuditDBPath)
	if err != nil {
		slog.Error("failed to open audit trail", "path", cfg.AuditDBPath, "error", err)
		os.Exit(1)
	}
	defer trail.Close()

	procFS, err := procfs.NewFS("/proc")
	if err != nil {
		slog.Error("failed to open procfs", "error", err)
		os.Exit(1)
	}

	producers := server.BuildProducers(server.ProducerConfig{
		Store:            st,
		Supervisor:       sup,
		ProcFS:           procFS,
		StubStatusURL:    cfg.StubStatusURL,
		NetworkInterface: cfg.NetworkInterface,
		PidFile:          nginx.DefaultPidFile,
		StartedAt:        time.Now(),
	})
	fan := fanout.New(producers)

	orch := orchestrator.New(st, rec, sup, filepath.Join(cfg.DataDir, "html"), fan, trail, idGen)

	agent := acme.New(cfg.DataDir, cfg.UseStagingACME())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fan.Start(ctx)
	defer fan.Stop()

	go runRenewalLoop(ctx, orch, st, agent)

	srv := server.New(server.Config{Orchestrator: orch, Fanout: fan, StaticDir: cfg.Static})

	if err := srv.Run(cfg.Addr); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// runRenewalLoop periodically scans the State Store for certificates due
// for ACME renewal and drives each one through the Orchestrator's barrier.
// A failed renewal is logged and retried on the next tick; it never stops
// the loop.
func runRenewalLoop(ctx context.Context, orch *orchestrator.Orchestrator, st *store.Store, agent *acme.Agent) {
	ticker := time.NewTicker(renewalScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			due := agent.RenewalScan(st, time.Now())
			for _, cert := range due {
				if _, err := orch.RenewCertificate(ctx, agent, cert.ID); err != nil {
					slog.Warn("certificate renewal failed", "certificate", cert.ID, "error", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
