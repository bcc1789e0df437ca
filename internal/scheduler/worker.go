package scheduler

import (
	"context"
	"fmt"

	"granite_crm_backend/internal/workflow/engine"
	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes delivery tasks and sends the underlying email through the
// workflow engine.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	engine *engine.Engine
	repo   *repository.Repository
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, eng *engine.Engine, repo *repository.Repository, log *logger.Logger) (*Worker, error) {
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
		server: server,
		mux:    mux,
		engine: eng,
		repo:   repo,
		log:    log,
	}

	mux.HandleFunc(TaskNotificationDue, w.handleNotificationDue)

	return w, nil
}

func (w *Worker) handleNotificationDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationDuePayload(task)
	if err != nil {
		return err
	}

	notificationID, err := uuid.Parse(payload.NotificationID)
	if err != nil {
		return err
	}

	notif, err := w.repo.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}

	// Already-sent rows are skipped inside DispatchNotification, so a task
	// enqueued twice for the same row is harmless.
	return w.engine.DispatchNotification(ctx, notif)
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
