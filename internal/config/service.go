package config

import (
	"time"

	"github.com/JonMunkholm/csvclean/internal/core"
)

// ServiceOptions translates the loaded configuration into core options.
// Call Validate first; an unknown quantile method falls back to linear.
func (c *Config) ServiceOptions() core.Options {
	method, err := core.ParseQuantileMethod(c.Clean.QuantileMethod)
	if err != nil {
		method = core.QuantileLinear
	}

	return core.Options{
		Cleaner: core.CleanerOptions{
			QuantileMethod: method,
			IQRMultiplier:  c.Clean.IQRMultiplier,
		},
		Manual: core.ManualOptions{
			MaxStatements: c.Manual.MaxStatements,
			CostLimit:     c.Manual.CostLimit,
		},
		ManualEnabled:     c.Manual.Enabled,
		PreviewRows:       c.Clean.PreviewRows,
		MaxUploadBytes:    c.Upload.MaxFileSize,
		FetchTimeout:      c.Fetch.Timeout,
		FetchMaxBytes:     c.Fetch.MaxSize,
		UserAgent:         c.Fetch.UserAgent,
		FetchAllowPrivate: c.Fetch.AllowPrivate,
		SessionTTL:        c.Session.TTL,
		MaxSessions:       c.Session.MaxSessions,
		MaxConcurrent:     c.Upload.MaxConcurrent,
		MaxWait:           c.Upload.MaxWaitTime,
	}
}

// MaintenanceConfig returns the schedule for session sweeps and activity purges.
func (c *Config) MaintenanceConfig() core.MaintenanceConfig {
	return core.MaintenanceConfig{
		Interval:          c.Session.SweepInterval,
		ActivityRetention: time.Duration(c.Activity.RetentionDays) * 24 * time.Hour,
	}
}
