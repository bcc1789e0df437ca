package scheduler

import (
	"context"
	"time"

	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

const (
	dispatchBatchSize  = 100
	enqueueConcurrency = 5
)

// Dispatcher polls the scheduled notification outbox and enqueues due rows
// for the worker.
type Dispatcher struct {
	client   *Client
	repo     *repository.Repository
	interval time.Duration
	log      *logger.Logger
}

func NewDispatcher(cfg config.SchedulerConfig, client *Client, repo *repository.Repository, log *logger.Logger) *Dispatcher {
	interval := cfg.GetDispatchInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Dispatcher{
		client:   client,
		repo:     repo,
		interval: interval,
		log:      log,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Due rows are selected by status only. They stay scheduled until
		// the worker marks them, so a row can be enqueued on consecutive
		// ticks; the worker's status check absorbs the duplicates.
		records, err := d.repo.ListDueNotifications(ctx, time.Now(), dispatchBatchSize)
		if err != nil {
			d.log.Warn("outbox poll failed", "error", err)
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(enqueueConcurrency)
		for _, rec := range records {
			rec := rec
			g.Go(func() error {
				payload := NotificationDuePayload{
					NotificationID: rec.ID.String(),
					LeadID:         rec.LeadID.String(),
				}
				if err := d.client.EnqueueNotification(gctx, payload, time.Now()); err != nil {
					d.log.Warn("failed to enqueue notification", "notification_id", rec.ID.String(), "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}
}
