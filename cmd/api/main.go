package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental_portal_backend/internal/assistant"
	"rental_portal_backend/internal/directory"
	"rental_portal_backend/internal/email"
	"rental_portal_backend/internal/events"
	apphttp "rental_portal_backend/internal/http"
	"rental_portal_backend/internal/http/router"
	"rental_portal_backend/internal/intake"
	"rental_portal_backend/internal/maintenance"
	"rental_portal_backend/internal/notify"
	"rental_portal_backend/internal/scheduler"
	"rental_portal_backend/internal/sms"
	"rental_portal_backend/internal/storage"
	"rental_portal_backend/internal/threads"
	"rental_portal_backend/migrations"
	"rental_portal_backend/platform/config"
	"rental_portal_backend/platform/db"
	"rental_portal_backend/platform/logger"
	"rental_portal_backend/platform/validator"

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
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
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

	// Shared validator instance for dependency injection
	val := validator.New()

	// Outbound transports; each is nil when its config is absent.
	smsClient, err := sms.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize sms client", "error", err)
		panic("failed to initialize sms client: " + err.Error())
	}
	emailSender := email.NewSender(cfg)
	if smsClient == nil && emailSender == nil {
		log.Warn("no outbound transport configured; owner notifications will fail")
	}

	assistantSvc := assistant.NewService(cfg, log)
	if assistantSvc == nil {
		log.Warn("assistant not configured; replies will use the fallback message")
	}

	// Attachment storage (MinIO)
	storageSvc, err := storage.NewService(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if storageSvc != nil {
		log.Info("storage service initialized", "bucket", cfg.GetAttachmentBucket())
	}

	taskClient, closeTasks := initTaskClient(cfg, log)
	if closeTasks != nil {
		defer closeTasks()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	directoryModule := directory.NewModule(pool, val)

	notifyRepo := notify.NewRepository(pool)
	notifyRouter := notify.NewRouter(notifyRepo, nil, nil, eventBus, log)
	if smsClient != nil {
		notifyRouter.SetSMS(smsClient)
	}
	if emailSender != nil {
		notifyRouter.SetEmail(emailSender)
	}
	notifyModule := notify.NewModule(notifyRepo, notifyRouter)

	threadsRepo := threads.NewRepository(pool)
	threadsSvc := threads.NewService(threadsRepo, nil, notifyRouter, directoryModule.Service(), eventBus, log)
	if assistantSvc != nil {
		threadsSvc.SetAnalyzer(assistantSvc)
	}
	sweeper := threads.NewSweeper(threadsSvc, directoryModule.Service(), eventBus, log, cfg.GetSweepInterval(), cfg.GetDefaultInactivityHours())
	threadsModule := threads.NewModule(threadsSvc, sweeper, val)

	maintenanceRepo := maintenance.NewRepository(pool)
	maintenanceSvc := maintenance.NewService(maintenanceRepo, eventBus, log)
	maintenanceModule := maintenance.NewModule(maintenanceSvc, val)

	executor := intake.NewExecutor(maintenanceSvc, notifyRouter, log)
	intakeSvc := intake.NewService(directoryModule.Service(), threadsSvc, nil, executor, nil, nil, eventBus, log)
	if assistantSvc != nil {
		intakeSvc.SetAssistant(assistantSvc)
	}
	if storageSvc != nil {
		intakeSvc.SetStorage(storageSvc)
	}
	if taskClient != nil {
		intakeSvc.SetAnalysisEnqueuer(taskClient)
	}
	if emailSender != nil {
		intakeSvc.SetReplyMailer(emailSender)
	}
	intakeModule := intake.NewModule(intakeSvc, val, cfg, smsClient.AuthToken(), log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			directoryModule,
			threadsModule,
			maintenanceModule,
			notifyModule,
			intakeModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; background thread analysis disabled")
		return nil, nil
	}

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task client", "error", err)
		return nil, nil
	}

	return taskClient, func() {
		_ = taskClient.Close()
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
