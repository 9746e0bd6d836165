package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nholik/uptime-sentinel/dashboard"
	"github.com/nholik/uptime-sentinel/internal/clock"
	"github.com/nholik/uptime-sentinel/internal/config"
	"github.com/nholik/uptime-sentinel/internal/healthcheck"
	"github.com/nholik/uptime-sentinel/internal/logging"
	"github.com/nholik/uptime-sentinel/internal/metrics"
	"github.com/nholik/uptime-sentinel/internal/probe"
	"github.com/nholik/uptime-sentinel/internal/query"
	"github.com/nholik/uptime-sentinel/internal/runner"
	"github.com/nholik/uptime-sentinel/internal/server"
	"github.com/nholik/uptime-sentinel/internal/state"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor loop and HTTP server (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewWithLevel(cfg.LogLevel)
	logger.Info().
		Str("target_url", cfg.TargetURL).
		Dur("poll_interval", cfg.PollInterval).
		Dur("probe_timeout", cfg.ProbeTimeout).
		Dur("retain_window", cfg.RetainWindow).
		Str("data_file", cfg.DataFile).
		Msg("uptime-sentinel starting")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	page, err := query.LoadPage(dashboard.Assets, dashboard.IndexPath)
	if err != nil {
		return err
	}

	prober, err := probe.NewHTTPProber(cfg.TargetURL, cfg.ProbeTimeout, logger.With().Str("component", "probe").Logger())
	if err != nil {
		return fmt.Errorf("init prober: %w", err)
	}

	sysClock := clock.System{}
	store := state.NewFileStore(cfg.DataFile, sysClock, logger.With().Str("component", "state").Logger())
	cache := query.NewCache()
	tracker := healthcheck.NewTracker()
	metricsCollector := metrics.New()

	router := server.NewRouter(server.RouterConfig{
		Logger:       logger.With().Str("component", "http").Logger(),
		Query:        query.NewService(store, cache, page, logger.With().Str("component", "query").Logger()),
		Tracker:      tracker,
		Metrics:      metricsCollector,
		PollInterval: cfg.PollInterval,
		Limiter:      server.NewLimiter(cfg.RateLimit, cfg.RateBurst),
	})

	r := runner.New(
		logger.With().Str("component", "runner").Logger(),
		cfg.PollInterval,
		runner.WithClock(sysClock),
		runner.WithProber(prober),
		runner.WithStateStore(store),
		runner.WithRetainWindow(cfg.RetainWindow),
		runner.WithPublisher(cache),
		runner.WithTracker(tracker),
		runner.WithMetrics(metricsCollector),
	)

	// Load history before serving so a corrupt file aborts startup.
	if err := r.Start(ctx); err != nil {
		return err
	}

	srvCtx, cancelSrv := context.WithCancel(ctx)
	defer cancelSrv()
	srv := server.New(logger.With().Str("component", "http").Logger(), cfg.ListenAddr, router)
	if err := srv.Start(srvCtx); err != nil {
		return err
	}

	runErr := r.Loop(ctx)

	cancelSrv()
	<-srv.Done()
	logger.Info().Msg("uptime-sentinel stopped")
	return runErr
}
