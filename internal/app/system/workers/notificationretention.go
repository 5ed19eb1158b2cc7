// internal/app/system/workers/notificationretention.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/stratachat/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ReadNotificationSweeper is the slice of the notification store the
// retention worker needs.
type ReadNotificationSweeper interface {
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRetention is a background worker that deletes read
// notifications older than the retention window. Unread ones are kept.
type NotificationRetention struct {
	store     ReadNotificationSweeper
	log       *zap.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewNotificationRetention creates the worker.
//
// Parameters:
//   - store: the notification store
//   - logger: zap logger
//   - interval: how often to sweep (e.g., 1 hour)
//   - retention: how long a read notification is kept (e.g., 30 days)
func NewNotificationRetention(store ReadNotificationSweeper, logger *zap.Logger, interval, retention time.Duration) *NotificationRetention {
	return &NotificationRetention{
		store:     store,
		log:       logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *NotificationRetention) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("notification retention worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call twice.
func (w *NotificationRetention) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("notification retention worker stopped")
}

func (w *NotificationRetention) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one retention pass. Exported so operators and tests can trigger it.
func (w *NotificationRetention) Sweep() {
	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Long(), w.log, "notification retention sweep")
	defer cancel()

	cutoff := w.now().Add(-w.retention)
	count, err := w.store.DeleteReadOlderThan(ctx, cutoff)
	if err != nil {
		w.log.Error("failed to sweep read notifications", zap.Error(err))
		return
	}
	if count > 0 {
		w.log.Info("swept read notifications", zap.Int64("count", count), zap.Time("cutoff", cutoff))
	}
}
