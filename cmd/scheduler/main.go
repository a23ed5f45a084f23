package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental_portal_backend/internal/assistant"
	"rental_portal_backend/internal/directory"
	"rental_portal_backend/internal/email"
	"rental_portal_backend/internal/events"
	"rental_portal_backend/internal/notify"
	"rental_portal_backend/internal/scheduler"
	"rental_portal_backend/internal/sms"
	"rental_portal_backend/internal/threads"
	"rental_portal_backend/platform/config"
	"rental_portal_backend/platform/db"
	"rental_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	smsClient, err := sms.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize sms client", "error", err)
		panic("failed to initialize sms client: " + err.Error())
	}
	emailSender := email.NewSender(cfg)

	assistantSvc := assistant.NewService(cfg, log)
	if assistantSvc == nil {
		log.Warn("assistant not configured; thread analysis tasks will degrade to no-ops")
	}

	directorySvc := directory.NewService(directory.New(pool))

	notifyRouter := notify.NewRouter(notify.NewRepository(pool), nil, nil, eventBus, log)
	if smsClient != nil {
		notifyRouter.SetSMS(smsClient)
	}
	if emailSender != nil {
		notifyRouter.SetEmail(emailSender)
	}

	threadsSvc := threads.NewService(threads.NewRepository(pool), nil, notifyRouter, directorySvc, eventBus, log)
	if assistantSvc != nil {
		threadsSvc.SetAnalyzer(assistantSvc)
	}

	// Inactivity sweep runs alongside the queue worker so a single process
	// owns all background thread maintenance.
	sweeper := threads.NewSweeper(threadsSvc, directorySvc, eventBus, log, cfg.GetSweepInterval(), cfg.GetDefaultInactivityHours())
	go sweeper.Run(ctx)

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; running inactivity sweep only")
		<-ctx.Done()
		return
	}

	worker, err := scheduler.NewWorker(cfg, threadsSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
