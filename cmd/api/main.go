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

	"estate_crm_backend/internal/events"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/internal/http/router"
	"estate_crm_backend/internal/leads"
	leadrepo "estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/notification"
	"estate_crm_backend/internal/notification/sse"
	"estate_crm_backend/internal/pipeline/board"
	"estate_crm_backend/internal/pipeline/workspace"
	"estate_crm_backend/internal/scheduler"
	"estate_crm_backend/migrations"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/db"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/kvstore"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

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
		return db.RunMigrations(ctx, cfg, migrations.FS, log)
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

	health := map[string]apphttp.HealthChecker{"database": db.NewPoolAdapter(pool)}
	prefs := initPreferencesStore(cfg, log, health)

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	val := validator.New()
	repo := leadrepo.New(pool)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	stream := sse.New(log)
	defer stream.Close()

	notificationModule := notification.New(stream, log)
	notificationModule.SetAgentResolver(repo)
	notificationModule.RegisterHandlers(eventBus)

	boardCache := board.NewCache(cfg.BoardCacheTTL)
	workspaces := workspace.NewRegistry(prefs, cfg.GetPreferencesKeyPrefix(), eventBus, log)
	go workspaces.RunSweeper(ctx, time.Minute, 30*time.Minute)

	leadsModule, err := leads.NewModule(repo, boardCache, workspaces, eventBus, notificationModule.Notifier(), val, log)
	if err != nil {
		log.Error("failed to initialize leads module", "error", err)
		panic("failed to initialize leads module: " + err.Error())
	}

	if followUps, closeFollowUps := initFollowUpScheduler(cfg, log); followUps != nil {
		defer closeFollowUps()
		leadsModule.Service().SetFollowUpScheduler(followUps)
	}

	if cfg.SchedulerEmbedded && cfg.IsSchedulerEnabled() {
		worker, err := scheduler.NewWorker(cfg, repo, eventBus, log)
		if err != nil {
			log.Error("failed to initialize embedded scheduler worker", "error", err)
		} else {
			go worker.Run(ctx)
			log.Info("embedded scheduler worker started", "queue", cfg.GetAsynqQueueName())
		}
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	rateLimiter := httpkit.NewAPIRateLimiter(cfg, log)
	if rateLimiter != nil {
		go rateLimiter.RunSweeper(ctx, time.Minute, 10*time.Minute)
	}

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      health,
		RateLimiter: rateLimiter,
		EventBus:    eventBus,
		Modules: []apphttp.Module{
			notificationModule,
			leadsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Open SSE streams would hold Shutdown until its deadline.
		stream.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initPreferencesStore returns the store for persisted board filters and
// agent selections: Redis when configured, process memory otherwise.
func initPreferencesStore(cfg *config.Config, log *logger.Logger, health map[string]apphttp.HealthChecker) kvstore.Store {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; board preferences kept in memory")
		return kvstore.NewMemory()
	}

	store, err := kvstore.NewRedis(cfg)
	if err != nil {
		log.Error("failed to initialize preferences store, falling back to memory", "error", err)
		return kvstore.NewMemory()
	}
	health["redis"] = store
	return store
}

func initFollowUpScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; follow-up reminders disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize follow-up scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
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
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", lastErr)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * baseDelay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
