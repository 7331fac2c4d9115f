package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Options configures a Service.
type Options struct {
	Cleaner CleanerOptions
	Manual  ManualOptions
	// ManualEnabled gates user transformation programs entirely.
	ManualEnabled bool
	PreviewRows   int

	MaxUploadBytes int64
	FetchTimeout   time.Duration
	FetchMaxBytes  int64
	UserAgent      string
	// FetchAllowPrivate lets URL loads reach loopback and private networks.
	FetchAllowPrivate bool

	SessionTTL  time.Duration
	MaxSessions int

	MaxConcurrent int
	MaxWait       time.Duration
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Cleaner:        DefaultCleanerOptions(),
		Manual:         ManualOptions{MaxStatements: 100, CostLimit: 100000},
		ManualEnabled:  true,
		PreviewRows:    DefaultPreviewRows,
		MaxUploadBytes: 50 << 20,
		FetchTimeout:   30 * time.Second,
		FetchMaxBytes:  50 << 20,
		UserAgent:      "csvclean/1.0",
		SessionTTL:     time.Hour,
		MaxSessions:    500,
		MaxConcurrent:  DefaultMaxConcurrentJobs,
		MaxWait:        DefaultMaxWaitTime,
	}
}

// Service is the entry point for every dataset operation. Web handlers and
// the CLI call it; it owns sessions, bounds concurrent work and records
// activity.
type Service struct {
	opts        Options
	cleaner     *Cleaner
	transformer *Transformer
	fetcher     *Fetcher
	sessions    *SessionStore
	limiter     *WorkLimiter
	activity    ActivityLog
}

// NewService wires a service. A nil activity log keeps entries in memory.
func NewService(opts Options, activity ActivityLog) (*Service, error) {
	if activity == nil {
		activity = NewMemoryActivityLog(DefaultActivityCapacity)
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}

	cleaner := NewCleaner(opts.Cleaner)
	transformer, err := NewTransformer(cleaner, opts.Manual)
	if err != nil {
		return nil, fmt.Errorf("create transformer: %w", err)
	}

	return &Service{
		opts:        opts,
		cleaner:     cleaner,
		transformer: transformer,
		fetcher:     NewFetcher(opts.FetchTimeout, opts.FetchMaxBytes, opts.UserAgent, opts.FetchAllowPrivate),
		sessions:    NewSessionStore(opts.SessionTTL, opts.MaxSessions),
		limiter:     NewWorkLimiter(opts.MaxConcurrent, opts.MaxWait),
		activity:    activity,
	}, nil
}

// NewSession starts an empty session.
func (s *Service) NewSession() *Session { return s.sessions.Create() }

// Session looks up a live session.
func (s *Service) Session(id string) (*Session, error) { return s.sessions.Get(id) }

// ManualEnabled reports whether transformation programs may run.
func (s *Service) ManualEnabled() bool { return s.opts.ManualEnabled }

// PreviewRows is the configured preview length.
func (s *Service) PreviewRows() int { return s.opts.PreviewRows }

// LimiterStatus reports work limiter usage for health checks.
func (s *Service) LimiterStatus() LimiterStatus { return s.limiter.Status() }

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int { return s.sessions.Len() }

// WaitForWork blocks until running jobs finish or ctx is done.
func (s *Service) WaitForWork(ctx context.Context) error { return s.limiter.WaitForDrain(ctx) }

// ReadUpload parses an uploaded file without touching any session.
func (s *Service) ReadUpload(name, contentType string, r io.Reader) (*Dataset, error) {
	if r == nil {
		return nil, &IngestionError{Source: name, Err: ErrNoSource}
	}
	if s.opts.MaxUploadBytes > 0 {
		r = newLimitReader(r, s.opts.MaxUploadBytes)
	}
	return ReadDataset(name, r, DetectFormat(name, contentType))
}

// FetchURL downloads and parses a remote file without touching any session.
func (s *Service) FetchURL(ctx context.Context, rawURL string) (*Dataset, error) {
	return s.fetcher.Fetch(ctx, rawURL)
}

// LoadUpload replaces the session's dataset with an uploaded file.
func (s *Service) LoadUpload(ctx context.Context, sess *Session, name, contentType string, r io.Reader) error {
	return s.load(ctx, sess, name, func() (*Dataset, error) {
		return s.ReadUpload(name, contentType, r)
	})
}

// LoadURL replaces the session's dataset with a downloaded file.
func (s *Service) LoadURL(ctx context.Context, sess *Session, rawURL string) error {
	return s.load(ctx, sess, rawURL, func() (*Dataset, error) {
		return s.FetchURL(ctx, rawURL)
	})
}

func (s *Service) load(ctx context.Context, sess *Session, source string, read func() (*Dataset, error)) error {
	return s.limiter.Do(ctx, func() error {
		start := time.Now()
		ds, err := read()
		if err != nil {
			return err
		}

		sess.mu.Lock()
		sess.load(source, ds)
		sess.mu.Unlock()

		slog.InfoContext(ctx, "dataset loaded",
			"session_id", sess.ID,
			"source", source,
			"rows", ds.NumRows(),
			"columns", ds.NumCols(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		s.record(ctx, ActivityParams{
			Action:    ActionLoad,
			SessionID: sess.ID,
			Source:    source,
			RowsAfter: ds.NumRows(),
			Detail:    fmt.Sprintf("%d columns", ds.NumCols()),
		})
		return nil
	})
}

// Clean runs the automatic cleaner on the session's current dataset.
func (s *Service) Clean(ctx context.Context, sess *Session) (*Report, error) {
	var report *Report
	err := s.limiter.Do(ctx, func() error {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if sess.current == nil {
			return ErrNoDataset
		}
		out, r, err := s.cleaner.Clean(sess.current)
		if err != nil {
			return err
		}
		sess.current = out
		sess.report = r
		report = r

		slog.InfoContext(ctx, "dataset cleaned",
			"session_id", sess.ID,
			"missing", r.MissingHandled(),
			"duplicates", r.DuplicatesRemoved(),
			"outliers", r.OutliersRemoved(),
		)
		s.record(ctx, ActivityParams{
			Action:     ActionClean,
			SessionID:  sess.ID,
			Source:     sess.source,
			Detail:     r.Summary(),
			RowsBefore: r.RowsBefore(),
			RowsAfter:  r.RowsAfter(),
		})
		return nil
	})
	return report, err
}

// CleanDataset cleans a dataset that is not held by any session, as the
// JSON API and CLI do.
func (s *Service) CleanDataset(ctx context.Context, source string, ds *Dataset) (*Dataset, *Report, error) {
	var (
		out    *Dataset
		report *Report
	)
	err := s.limiter.Do(ctx, func() error {
		var err error
		out, report, err = s.cleaner.Clean(ds)
		if err != nil {
			return err
		}
		s.record(ctx, ActivityParams{
			Action:     ActionClean,
			Source:     source,
			Detail:     report.Summary(),
			RowsBefore: report.RowsBefore(),
			RowsAfter:  report.RowsAfter(),
		})
		return nil
	})
	return out, report, err
}

// Transform runs a manual program on the session's current dataset. On
// failure the session is left as it was.
func (s *Service) Transform(ctx context.Context, sess *Session, program string) (*TransformResult, error) {
	if !s.opts.ManualEnabled {
		return nil, ErrManualModeDisabled
	}

	var res *TransformResult
	err := s.limiter.Do(ctx, func() error {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if sess.current == nil {
			return ErrNoDataset
		}
		sess.program = program

		before := sess.current.NumRows()
		out, err := s.transformer.Run(ctx, sess.current, program)
		if err != nil {
			return err
		}
		sess.current = out.Dataset
		if out.Report != nil {
			sess.report = out.Report
		}
		res = out

		slog.InfoContext(ctx, "transformation applied",
			"session_id", sess.ID,
			"statements", out.Applied,
			"rows_before", before,
			"rows_after", out.Dataset.NumRows(),
		)
		s.record(ctx, ActivityParams{
			Action:     ActionTransform,
			SessionID:  sess.ID,
			Source:     sess.source,
			Detail:     fmt.Sprintf("%d statements", out.Applied),
			RowsBefore: before,
			RowsAfter:  out.Dataset.NumRows(),
		})
		return nil
	})
	return res, err
}

// TransformDataset runs a program on a dataset outside any session.
func (s *Service) TransformDataset(ctx context.Context, ds *Dataset, program string) (*TransformResult, error) {
	if !s.opts.ManualEnabled {
		return nil, ErrManualModeDisabled
	}
	var res *TransformResult
	err := s.limiter.Do(ctx, func() error {
		var err error
		res, err = s.transformer.Run(ctx, ds, program)
		return err
	})
	return res, err
}

// Reset restores the dataset as it was loaded.
func (s *Service) Reset(ctx context.Context, sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.original == nil {
		return ErrNoDataset
	}
	before := sess.current.NumRows()
	sess.current = sess.original
	sess.report = nil

	s.record(ctx, ActivityParams{
		Action:     ActionReset,
		SessionID:  sess.ID,
		Source:     sess.source,
		RowsBefore: before,
		RowsAfter:  sess.original.NumRows(),
	})
	return nil
}

// Export writes the session's current dataset to w.
func (s *Service) Export(ctx context.Context, sess *Session, w io.Writer, format Format) error {
	sess.mu.Lock()
	ds, source := sess.current, sess.source
	sess.mu.Unlock()

	if ds == nil {
		return ErrNoDataset
	}
	if err := Export(w, ds, format); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}

	s.record(ctx, ActivityParams{
		Action:    ActionDownload,
		SessionID: sess.ID,
		Source:    source,
		Detail:    string(format),
		RowsAfter: ds.NumRows(),
	})
	return nil
}

// Preview renders the head of the session's current dataset.
func (s *Service) Preview(sess *Session) (*Preview, error) {
	snap := sess.Snapshot()
	if !snap.HasData() {
		return nil, ErrNoDataset
	}
	return BuildPreview(snap.Current, s.opts.PreviewRows), nil
}

// RecentActivity returns the newest activity entries.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	entries, err := s.activity.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return entries, nil
}

// record writes an activity entry. Failures are logged and never fail the
// operation that triggered them.
func (s *Service) record(ctx context.Context, p ActivityParams) {
	entry := NewActivityEntry(ctx, p)
	if err := s.activity.Record(ctx, entry); err != nil {
		slog.WarnContext(ctx, "record activity failed",
			"action", p.Action,
			"session_id", p.SessionID,
			"error", err,
		)
	}
}
