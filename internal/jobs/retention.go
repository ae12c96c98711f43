// Package jobs runs the background retention sweep that removes terminal
// jobs (and their cascading page results/events) past their grace period,
// per spec.md §3's "Lifetime = lifetime of the job plus a small grace
// period".
package jobs

import (
	"context"
	"log/slog"
	"time"

	"docuforge/internal/config"
	"docuforge/internal/metrics"
	"docuforge/internal/store"
)

// CleanupExpiredData deletes terminal jobs older than the configured grace
// period and returns the number removed.
func CleanupExpiredData(ctx context.Context, cfg *config.Config, st *store.Store) int64 {
	if !cfg.Retention.Enabled {
		return 0
	}

	cutoff := time.Now().UTC().Add(-time.Duration(cfg.Retention.JobGraceMinutes) * time.Minute)
	n, err := st.DeleteExpired(ctx, cutoff)
	if err != nil || n == 0 {
		return 0
	}
	metrics.RecordRetentionJobs(n)
	return n
}

// Scheduler periodically runs the retention sweep on a ticker. It is the
// one concern this system runs on an interval outside a per-job Instance:
// expiring old jobs.
type Scheduler struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewScheduler constructs a Scheduler over shared infrastructure.
func NewScheduler(cfg *config.Config, st *store.Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, store: st, logger: logger}
}

// Start runs the sweep on cfg.Retention.CleanupIntervalMins until ctx is
// cancelled. Intended to be run in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.cfg.Retention.Enabled {
		return
	}

	interval := time.Duration(s.cfg.Retention.CleanupIntervalMins) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := CleanupExpiredData(ctx, s.cfg, s.store)
			if n > 0 && s.logger != nil {
				s.logger.Info("retention sweep deleted jobs", "count", n)
			}
		}
	}
}
