package worker

import (
	"context"
	"time"

	"github.com/Data-to-Insight-Center/ckn-edge-awareness-framework/internal/logging"
	"go.uber.org/zap"
)

type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RetentionWorker periodically purges uploads whose delete_after has
// passed, enforcing the store retention window of the oracle pipeline.
type RetentionWorker struct {
	svc      ExpiredDeleter
	logger   *logging.Logger
	interval time.Duration
}

func NewRetentionWorker(svc ExpiredDeleter, logger *logging.Logger, interval time.Duration) *RetentionWorker {
	return &RetentionWorker{
		svc:      svc,
		logger:   logger,
		interval: interval,
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Retention worker stopped")
			return
		case <-ticker.C:
			w.purge(ctx)
		}
	}
}

func (w *RetentionWorker) purge(ctx context.Context) {
	deleted, err := w.svc.DeleteExpired(ctx, time.Now())
	if err != nil {
		w.logger.Error(ctx, "Failed to purge expired uploads", zap.Error(err))
		return
	}
	if deleted > 0 {
		w.logger.Info(ctx, "Purged expired uploads", zap.Int("count", deleted))
	}
}
