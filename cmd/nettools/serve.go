package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/nettools/internal/notify"
	"github.com/user/nettools/internal/probes"
	"github.com/user/nettools/internal/reconcile"
	"github.com/user/nettools/internal/scheduler"
	"github.com/user/nettools/internal/storage"
	"github.com/user/nettools/internal/util"
	"github.com/user/nettools/internal/web"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring agent and JSON API",
	Long: `Run the agent: the API server plus the scheduled network scans and
speed tests configured through the settings API.

Examples:
  nettools serve
  nettools serve --port 8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"web server port (defaults to web_port from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := storage.Initialize(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	settings := storage.NewSettingsStorage(db)
	speedStore := storage.NewSpeedTestStorage(db)

	runner := probes.NewRunner()
	scanner := probes.NewScanner(runner, cfg.ScanInterface)
	speedTester := probes.NewSpeedTester(runner)
	tracer := probes.NewTracer(runner, cfg.TraceMaxHops)
	dns := probes.NewDNSLookup(runner)
	pinger := probes.NewPinger(runner, cfg.PingConcurrency, cfg.PingTimeout)
	notifier := notify.NewTelegram(settings)

	reconciler := reconcile.New(storage.NewScanStore(db))
	scanRunner := reconcile.NewRunner(scanner, reconciler, notifier, settings)

	sched := scheduler.New(settings,
		func(ctx context.Context) error {
			_, err := scanRunner.RunScan(ctx)
			return err
		},
		func(ctx context.Context) error {
			result, err := speedTester.Run(ctx, "")
			if err != nil {
				return err
			}
			return speedStore.Append(ctx, result)
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Rebuild(ctx); err != nil {
		util.Warn().Err(err).Msg("could not build schedule from settings")
	}
	go sched.Run(ctx)

	port := servePort
	if port == 0 {
		port = cfg.WebPort
	}

	handlers := web.NewHandlers(db, sched, scanRunner, speedTester, tracer, dns, pinger, notifier)
	srv := web.NewServer(handlers, port)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		util.Info().Msg("shutting down")
		cancel()
		srv.Stop()
	}()

	fmt.Printf("NetTools API listening on http://localhost:%d\n", port)
	return srv.Start()
}
