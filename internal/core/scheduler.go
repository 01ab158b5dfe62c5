package core

import (
	"context"
	"time"
)

// RetentionConfig controls how long import history is kept.
type RetentionConfig struct {
	RetentionDays int           // runs older than this are purged (default 90)
	CheckInterval time.Duration // how often to purge (default 24h)
}

// StartRetentionScheduler purges old import runs immediately and then every
// CheckInterval until ctx is cancelled. Failures are logged, never fatal.
func (s *Service) StartRetentionScheduler(ctx context.Context, cfg RetentionConfig) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}

	s.logger.Info("retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval.String(),
	)

	s.purgeRuns(ctx, cfg.RetentionDays)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retention scheduler stopped")
			return
		case <-ticker.C:
			s.purgeRuns(ctx, cfg.RetentionDays)
		}
	}
}

func (s *Service) purgeRuns(ctx context.Context, retentionDays int) {
	start := time.Now()
	cutoff := s.now().AddDate(0, 0, -retentionDays)

	purged, err := s.runs.PurgeRunsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("purge import runs failed", "error", err)
		return
	}
	s.logger.Info("purged import runs",
		"runs_purged", purged,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
