package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intervention_backend/internal/email"
	"intervention_backend/internal/events"
	apphttp "intervention_backend/internal/http"
	"intervention_backend/internal/http/router"
	"intervention_backend/internal/interventions"
	"intervention_backend/internal/notification"
	"intervention_backend/internal/notification/sse"
	"intervention_backend/internal/scheduler"
	"intervention_backend/migrations"
	"intervention_backend/platform/config"
	"intervention_backend/platform/db"
	"intervention_backend/platform/logger"
	"intervention_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	sseService := sse.New(log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(pool, sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	notificationModule.SetSSE(sseService)

	interventionsModule := interventions.NewModule(pool, val, notificationModule.Dispatcher(), eventBus, log)

	// Email stage reads interventions back (breaks circular dependency)
	notificationModule.SetInterventionReader(interventionsModule.Repository)

	var queueHealth apphttp.HealthChecker
	if cfg.IsSchedulerEnabled() {
		// The scheduler process polls the outbox and runs the email stage.
		notificationModule.SetJobSubmitter(scheduler.NewOutboxSubmitter(notificationModule.Outbox()))
		redisHealth, err := scheduler.NewRedisHealth(cfg)
		if err != nil {
			log.Error("failed to initialize redis health check", "error", err)
			panic("failed to initialize redis health check: " + err.Error())
		}
		defer func() { _ = redisHealth.Close() }()
		queueHealth = redisHealth
	} else {
		log.Warn("REDIS_URL not configured; dispatch jobs run in-process")
		runner := scheduler.NewLocalRunner(notificationModule.Outbox(), eventBus, cfg.GetOutboxPollInterval(), log)
		notificationModule.SetJobSubmitter(runner)
		go runner.Run(ctx)
		go scheduler.NewDispatchJobCleanup(notificationModule.Outbox(), log, 0, 0, 0, 0).Run(ctx)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      db.NewPoolAdapter(pool),
		QueueHealth: queueHealth,
		EventBus:    eventBus,
		Modules: []apphttp.Module{
			interventionsModule,
			notificationModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		sseService.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
