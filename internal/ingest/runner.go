package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
)

// Runner periodically pulls every configured source and upserts the results.
type Runner struct {
	sources  []Source
	writer   domain.TenderWriter
	interval time.Duration
	logger   *slog.Logger

	// OnBatch, when set, is called after each successful source pass.
	OnBatch func(sourceID string, stats domain.UpsertStats)
}

func NewRunner(sources []Source, writer domain.TenderWriter, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		sources:  sources,
		writer:   writer,
		interval: interval,
		logger:   logger,
	}
}

// Run executes one pass immediately, then one per interval until ctx ends.
func (r *Runner) Run(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("ingest pass failed", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("ingest runner stopping")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("ingest pass failed", "error", err)
			}
		}
	}
}

// RunOnce pulls every source once. A failing source does not stop the
// others; all failures are joined into the returned error.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error

	for _, src := range r.sources {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		start := time.Now()
		tenders, err := src.Fetch(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.ID(), err))
			continue
		}

		stats, err := r.writer.UpsertTenders(ctx, tenders)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: upsert: %w", src.ID(), err))
			continue
		}

		r.logger.Info("ingest pass complete",
			"source", src.ID(),
			"fetched", len(tenders),
			"inserted", stats.Inserted,
			"updated", stats.Updated,
			"unchanged", stats.Unchanged,
			"duration", time.Since(start).Round(time.Millisecond),
		)

		if r.OnBatch != nil {
			r.OnBatch(src.ID(), stats)
		}
	}

	return errors.Join(errs...)
}
