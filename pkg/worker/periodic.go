package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/crm-api/pkg/logger"
)

// PeriodicWorker runs fn on a fixed interval, as cron-style sweeps do.
type PeriodicWorker struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	logger   *logger.Logger
}

func NewPeriodicWorker(name string, interval time.Duration, fn func(ctx context.Context) error, logger *logger.Logger) *PeriodicWorker {
	if interval <= 0 {
		panic("interval must be greater than 0")
	}
	return &PeriodicWorker{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
	}
}

// Start blocks until ctx is done. The first run happens after one interval.
func (w *PeriodicWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting periodic worker", "name", w.name, "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

func (w *PeriodicWorker) RunOnce(ctx context.Context) {
	start := time.Now()
	if err := w.fn(ctx); err != nil {
		w.logger.Error(err, "Periodic run failed", "name", w.name)
		return
	}
	w.logger.Debug("Periodic run finished", "name", w.name, "duration", time.Since(start).String())
}
