package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"parking-scheduler-backend/config"
	"parking-scheduler-backend/internal/api"
	"parking-scheduler-backend/internal/db"
	"parking-scheduler-backend/internal/decision"
	"parking-scheduler-backend/internal/feed"
	"parking-scheduler-backend/internal/garage"
	"parking-scheduler-backend/internal/logging"
	"parking-scheduler-backend/internal/metrics"
	"parking-scheduler-backend/internal/notification"
	"parking-scheduler-backend/internal/scheduler"
	"parking-scheduler-backend/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler with its HTTP API, database journal and push notifications",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Console)
	log := logging.Component("parkingd")
	log.Info().Str("path", configPath).Msg("configuration loaded")

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		return errors.New("VAPID keys must be configured; generate them and add them to the push section")
	}
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	layout, err := garage.Build(cfg.Tiers, cfg.Scheduler.Unit)
	if err != nil {
		return fmt.Errorf("invalid garage layout: %w", err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := appStore.SyncCatalog(ctx, layout.Items); err != nil {
		return fmt.Errorf("failed to sync slot catalog: %w", err)
	}
	// Bindings are not restored across restarts; archive whatever the last run left open.
	if n, err := appStore.CloseAll(ctx, time.Now()); err != nil {
		return fmt.Errorf("failed to close stale occupancies: %w", err)
	} else if n > 0 {
		log.Warn().Int("count", n).Msg("archived occupancies left open by a previous run")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.Buffer, gormDB, &webpushOptions, logging.Component("notification"))
	pool.Start(ctx)
	dispatcher := notification.NewDispatcher(appStore, pool, cfg.WorkerPool.Buffer, logging.Component("journal"))

	remote := decision.NewRemote(cfg.Decision.AnswerTimeout, logging.Component("decision"))
	decisions := decisionSource(cfg, layout.Catalog, remote)

	sched := scheduler.New(layout.Catalog, schedulerConfig(cfg), scheduler.Options{
		Decisions: decisions,
		Status:    m,
		Observer:  m,
		Journal:   dispatcher,
		Logger:    logging.Logger(),
	})
	if err := m.WatchSnapshots(sched); err != nil {
		return fmt.Errorf("failed to register tier metrics: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx, sched)
	}()
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("resolver stopped")
		}
	}()

	feedSvc := feed.NewService(cfg.Feed, cfg.Scheduler.Unit, sched, logging.Component("feed"))
	go feedSvc.Run(ctx)

	var apiDecisions *decision.Remote
	if cfg.Decision.Mode == "api" {
		apiDecisions = remote
	}
	handler := api.NewHandler(sched, appStore, &webpushOptions, apiDecisions, cfg.Scheduler.Unit)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(handler, cfg.Server, reg),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping services")
	case err := <-serveErr:
		stop()
		wg.Wait()
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	wg.Wait()

	if n, err := appStore.CloseAll(shutdownCtx, time.Now()); err != nil {
		log.Error().Err(err).Msg("failed to archive open occupancies")
	} else {
		log.Info().Int("archived", n).Msg("open occupancies archived")
	}
	log.Info().Msg("server gracefully stopped")
	return nil
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		BatchWindow:      cfg.Scheduler.BatchWindow,
		ResetWhenIdle:    cfg.Scheduler.ResetWhenIdle,
		DecisionAttempts: cfg.Scheduler.DecisionAttempts,
	}
}

// decisionSource picks who answers expiries. remote is used in api mode.
func decisionSource(cfg *config.Config, catalog *scheduler.Catalog, remote *decision.Remote) scheduler.DecisionSource {
	switch cfg.Decision.Mode {
	case "api":
		return remote
	case "console":
		return decision.NewConsole(os.Stdin, os.Stdout, cfg.Scheduler.Unit)
	default:
		extend := make(map[scheduler.Tier]time.Duration, len(cfg.Decision.ExtendTiers))
		for _, t := range cfg.Decision.ExtendTiers {
			extend[scheduler.Tier(t)] = cfg.Scheduler.Minutes(cfg.Decision.ExtendMinutes)
		}
		return decision.NewPolicy(catalog, extend, cfg.Decision.MaxExtensions)
	}
}
