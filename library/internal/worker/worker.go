// Package worker runs periodic catalog jobs.
package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-catalog/library/internal/lifecycle"
	"github.com/Astemirdum/library-catalog/library/internal/metrics"
)

const DefaultSchedule = "@every 1m"

type CatalogStats interface {
	CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error)
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

type Worker struct {
	cron    *cron.Cron
	stats   CatalogStats
	timeout time.Duration
	log     *zap.Logger
}

func New(schedule string, stats CatalogStats, log *zap.Logger) (*Worker, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	w := &Worker{
		cron:    cron.New(),
		stats:   stats,
		timeout: 10 * time.Second,
		log:     log.Named("worker"),
	}
	if _, err := w.cron.AddFunc(schedule, w.RefreshGauges); err != nil {
		return nil, errors.Wrapf(err, "schedule %q", schedule)
	}
	return w, nil
}

// Start refreshes the gauges once and then runs the schedule in the background.
func (w *Worker) Start() {
	w.RefreshGauges()
	w.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	select {
	case <-w.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) RefreshGauges() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	counts, err := w.stats.CountByStatus(ctx)
	if err != nil {
		w.log.Error("count books by status", zap.Error(err))
		return
	}
	metrics.SetBookCounts(counts)

	n, err := w.stats.CountOverdue(ctx, time.Now())
	if err != nil {
		w.log.Error("count overdue loans", zap.Error(err))
		return
	}
	metrics.SetOverdue(n)
	w.log.Debug("catalog gauges refreshed", zap.Any("books", counts), zap.Int("overdue", n))
}
