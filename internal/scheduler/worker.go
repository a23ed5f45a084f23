package scheduler

import (
	"context"
	"fmt"

	"rental_portal_backend/internal/threads"
	"rental_portal_backend/platform/apperr"
	"rental_portal_backend/platform/config"
	"rental_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes the background analysis queue: escalation checks right
// after intake, then the slower categorize/summarize/relationship pass.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	threads *threads.Service
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, threadService *threads.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		threads: threadService,
		log:     log,
	}

	mux.HandleFunc(TaskEscalationCheck, w.handleEscalationCheck)
	mux.HandleFunc(TaskThreadAnalysis, w.handleThreadAnalysis)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleEscalationCheck(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEscalationCheckPayload(task)
	if err != nil {
		return err
	}

	threadID, err := uuid.Parse(payload.ThreadID)
	if err != nil {
		return err
	}

	assessment, err := w.threads.CheckEscalation(ctx, threadID)
	if err != nil {
		// A missing thread is not retryable; it was merged or deleted
		// between enqueue and execution.
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("escalation check skipped, thread gone", "threadId", threadID)
			return nil
		}
		return err
	}

	if assessment.IsEscalating {
		w.log.Info("thread escalation detected",
			"threadId", threadID,
			"confidence", assessment.Confidence,
		)
	}
	return nil
}

func (w *Worker) handleThreadAnalysis(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseThreadAnalysisPayload(task)
	if err != nil {
		return err
	}

	threadID, err := uuid.Parse(payload.ThreadID)
	if err != nil {
		return err
	}

	if _, err := w.threads.Categorize(ctx, threadID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			w.log.Warn("thread analysis skipped, thread gone", "threadId", threadID)
			return nil
		}
		return err
	}

	if _, err := w.threads.Summarize(ctx, threadID); err != nil {
		return err
	}

	if _, err := w.threads.DiscoverRelationships(ctx, threadID); err != nil {
		return err
	}

	return nil
}
