package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"safety-planner/internal/common/config"
	"safety-planner/internal/common/logging"
	"safety-planner/internal/common/middleware"
	"safety-planner/internal/planner/handlers"
	"safety-planner/internal/planner/repository"
	"safety-planner/internal/planner/risk"
	"safety-planner/internal/planner/service"
	"safety-planner/internal/planner/versioning"
)

// ============================================================
// Safety Planner Service
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("planner stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ============================================================
	// Risk rules
	// ============================================================

	rules := risk.DefaultRules()
	if cfg.RulesPath != "" {
		loaded, err := risk.LoadRules(cfg.RulesPath)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		rules = loaded
	}
	engine, err := risk.NewEngine(rules, logger)
	if err != nil {
		return fmt.Errorf("risk engine: %w", err)
	}
	holder := risk.NewHolder(engine)

	// ============================================================
	// Storage & workspace
	// ============================================================

	store, closeStore, err := repository.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(reg)

	persister := service.NewPersister(store, cfg.PersistDebounceDuration(), metrics, logger)
	svc := service.New(
		versioning.New(versioning.WithSnapshotInterval(cfg.SnapshotInterval)),
		holder,
		logger,
		service.WithPersister(persister),
		service.WithMetrics(metrics),
	)
	if _, err := svc.Restore(ctx, store); err != nil {
		return fmt.Errorf("restore workspace: %w", err)
	}

	// ============================================================
	// HTTP
	// ============================================================

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
		AppName:      "Safety Planner",
	})

	app.Use(recover.New())
	app.Use(middleware.Logger(logger.With().Str("component", "access").Logger()))
	app.Use(middleware.CORS())

	checks := map[string]handlers.Check{}
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["store"] = pinger.Ping
	}
	app.Get("/health/live", handlers.LivenessProbe)
	app.Get("/health/ready", handlers.ReadinessProbe(checks))
	app.Get("/metrics", handlers.Metrics(reg))

	handlers.NewPlannerHandler(svc, logger).Register(app.Group("/api/v1"))

	// ============================================================
	// Run
	// ============================================================

	g, gctx := errgroup.WithContext(ctx)

	// Персистер живет дольше HTTP-сервера: его контекст отменяется только
	// после остановки приема запросов, чтобы последний коммит не потерялся.
	persistCtx, stopPersist := context.WithCancel(context.Background())
	defer stopPersist()
	g.Go(func() error {
		return persister.Run(persistCtx)
	})

	if cfg.RulesPath != "" {
		watcher := risk.NewWatcher(cfg.RulesPath, holder, logger)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-watcher.Reloaded():
					svc.RefreshRisk()
				}
			}
		})
	}

	g.Go(func() error {
		addr := fmt.Sprintf(":%s", cfg.Port)
		logger.Info().Str("addr", addr).Str("env", cfg.Environment).Msg("starting safety planner")
		return app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		<-gctx.Done()
		return drain(app, stopPersist, 10*time.Second)
	})

	err = g.Wait()
	// Снимки, отданные уже после выхода персистера (например, из
	// перезагрузки правил), сбрасываются здесь.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := persister.Flush(flushCtx); ferr != nil {
		logger.Error().Err(ferr).Msg("final save")
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

type shutdowner interface {
	ShutdownWithContext(ctx context.Context) error
}

// drain сначала останавливает HTTP-сервер, дожидаясь текущих запросов,
// и только потом отпускает персистер на финальное сохранение.
func drain(server shutdowner, stopPersist context.CancelFunc, timeout time.Duration) error {
	defer stopPersist()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.ShutdownWithContext(ctx)
}
