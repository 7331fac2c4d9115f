package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityAction is the kind of user-visible operation being recorded.
type ActivityAction string

const (
	ActionLoad      ActivityAction = "load"
	ActionClean     ActivityAction = "clean"
	ActionTransform ActivityAction = "transform"
	ActionReset     ActivityAction = "reset"
	ActionDownload  ActivityAction = "download"
)

// Severity ranks how much an action changes the data.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SeverityFor returns the severity recorded for an action. User programs are
// high because their effect is arbitrary.
func SeverityFor(action ActivityAction) Severity {
	switch action {
	case ActionLoad, ActionDownload:
		return SeverityLow
	case ActionTransform:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// ActivityEntry is one record in the activity log.
type ActivityEntry struct {
	ID         string         `json:"id"`
	Action     ActivityAction `json:"action"`
	Severity   Severity       `json:"severity"`
	SessionID  string         `json:"sessionId"`
	Source     string         `json:"source,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	RowsBefore int            `json:"rowsBefore"`
	RowsAfter  int            `json:"rowsAfter"`
	IPAddress  string         `json:"ipAddress,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// ActivityParams describes an action to record.
type ActivityParams struct {
	Action     ActivityAction
	SessionID  string
	Source     string
	Detail     string
	RowsBefore int
	RowsAfter  int
}

// NewActivityEntry fills in the id, severity, timestamp and the client
// details carried by ctx.
func NewActivityEntry(ctx context.Context, p ActivityParams) ActivityEntry {
	return ActivityEntry{
		ID:         uuid.NewString(),
		Action:     p.Action,
		Severity:   SeverityFor(p.Action),
		SessionID:  p.SessionID,
		Source:     p.Source,
		Detail:     p.Detail,
		RowsBefore: p.RowsBefore,
		RowsAfter:  p.RowsAfter,
		IPAddress:  GetIPAddressFromContext(ctx),
		UserAgent:  GetUserAgentFromContext(ctx),
		CreatedAt:  time.Now().UTC(),
	}
}

// ActivityLog stores activity entries.
type ActivityLog interface {
	Record(ctx context.Context, e ActivityEntry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]ActivityEntry, error)
	// Purge deletes entries created before the cutoff and returns the count.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// DefaultActivityCapacity is used when a memory log is created with capacity <= 0.
const DefaultActivityCapacity = 1000

// MemoryActivityLog keeps the most recent entries in a ring buffer. It is the
// activity log used when no database is configured.
type MemoryActivityLog struct {
	mu      sync.RWMutex
	entries []ActivityEntry
	next    int
	full    bool
}

// NewMemoryActivityLog creates a log holding at most capacity entries.
func NewMemoryActivityLog(capacity int) *MemoryActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &MemoryActivityLog{entries: make([]ActivityEntry, capacity)}
}

func (m *MemoryActivityLog) Record(_ context.Context, e ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryActivityLog) Recent(_ context.Context, limit int) ([]ActivityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ActivityEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out, nil
}

func (m *MemoryActivityLog) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.lenLocked()
	kept := make([]ActivityEntry, 0, n)
	// Oldest first so the ring keeps chronological order.
	for i := n; i >= 1; i-- {
		e := m.entries[(m.next-i+len(m.entries))%len(m.entries)]
		if !e.CreatedAt.Before(before) {
			kept = append(kept, e)
		}
	}

	purged := int64(n - len(kept))
	if purged == 0 {
		return 0, nil
	}
	clear(m.entries)
	copy(m.entries, kept)
	m.next = len(kept) % len(m.entries)
	m.full = len(kept) == len(m.entries)
	return purged, nil
}

// Len returns the number of stored entries.
func (m *MemoryActivityLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lenLocked()
}

func (m *MemoryActivityLog) lenLocked() int {
	if m.full {
		return len(m.entries)
	}
	return m.next
}
