package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-fleetreport/internal/features/catalog"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reloadTimeout = time.Minute

// Reloader reloads the report catalog from its source.
type Reloader interface {
	Reload(ctx context.Context) (catalog.LoadResult, error)
}

// CatalogReloader reloads the report catalog on a cron schedule.
type CatalogReloader struct {
	schedule string
	target   Reloader
	logger   *zap.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
	entryID   cron.EntryID
}

func NewCatalogReloader(schedule string, target Reloader, logger *zap.Logger) *CatalogReloader {
	return &CatalogReloader{schedule: schedule, target: target, logger: logger}
}

// Start registers the reload job. A blank schedule disables reloading.
func (r *CatalogReloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.schedule == "" {
		r.logger.Info("Report catalog reload schedule not set")
		return nil
	}
	if r.scheduler != nil {
		return fmt.Errorf("catalog reloader already started")
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid reload schedule %q: %w", r.schedule, err)
	}

	r.scheduler = cron.New()
	entryID, err := r.scheduler.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		r.RunOnce(ctx)
	})
	if err != nil {
		r.scheduler = nil
		return fmt.Errorf("failed to add reload job to scheduler: %w", err)
	}
	r.entryID = entryID
	r.scheduler.Start()
	r.logger.Info("Report catalog reload scheduled", zap.String("schedule", r.schedule))
	return nil
}

func (r *CatalogReloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler != nil {
		ctx := r.scheduler.Stop()
		<-ctx.Done()
		r.scheduler = nil
	}
}

// Next returns the time of the next scheduled reload.
func (r *CatalogReloader) Next() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scheduler == nil {
		return time.Time{}, false
	}
	return r.scheduler.Entry(r.entryID).Next, true
}

// RunOnce reloads the catalog and logs the outcome.
func (r *CatalogReloader) RunOnce(ctx context.Context) {
	res, err := r.target.Reload(ctx)
	if err != nil {
		r.logger.Error("Scheduled report catalog reload failed", zap.Error(err))
		return
	}
	if res.HasErrors {
		r.logger.Warn("Scheduled report catalog reload has errors",
			zap.Int("reports", res.Count),
			zap.Int("errors", len(res.Errors())))
	}
}
