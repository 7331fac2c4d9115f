package core

// scheduler.go runs periodic maintenance:
//  1. Drop sessions idle longer than the session TTL (frees their datasets)
//  2. Purge activity entries older than the retention window
//
// Failures are logged and retried on the next tick; they never stop the
// application.

import (
	"context"
	"log/slog"
	"time"
)

// MaintenanceConfig controls the maintenance loop. Zero values get defaults.
type MaintenanceConfig struct {
	Interval          time.Duration // How often to run (default: 5m)
	ActivityRetention time.Duration // Age after which activity is purged (default: 30 days)
}

func (c MaintenanceConfig) withDefaults() MaintenanceConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.ActivityRetention <= 0 {
		c.ActivityRetention = 30 * 24 * time.Hour
	}
	return c
}

// StartMaintenance runs one maintenance pass immediately and then every
// Interval until ctx is cancelled.
func (s *Service) StartMaintenance(ctx context.Context, cfg MaintenanceConfig) {
	cfg = cfg.withDefaults()
	slog.Info("maintenance scheduler started",
		"interval", cfg.Interval.String(),
		"activity_retention", cfg.ActivityRetention.String(),
	)

	s.runMaintenance(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			s.runMaintenance(ctx, cfg)
		}
	}
}

// MaintenanceResult reports what one pass removed.
type MaintenanceResult struct {
	SessionsExpired int
	ActivityPurged  int64
}

// runMaintenance performs one sweep + purge cycle.
func (s *Service) runMaintenance(ctx context.Context, cfg MaintenanceConfig) MaintenanceResult {
	start := time.Now()
	var res MaintenanceResult

	res.SessionsExpired = s.sessions.Sweep()
	if res.SessionsExpired > 0 {
		slog.Info("expired idle sessions",
			"sessions_expired", res.SessionsExpired,
			"sessions_live", s.sessions.Len(),
		)
	}

	purged, err := s.activity.Purge(ctx, time.Now().Add(-cfg.ActivityRetention))
	if err != nil {
		slog.Error("activity purge failed", "error", err)
	} else {
		res.ActivityPurged = purged
		if purged > 0 {
			slog.Info("purged activity entries", "entries_purged", purged)
		}
	}

	slog.Debug("maintenance completed",
		"total_duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}
