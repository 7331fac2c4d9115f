package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is the per-browser working state: the dataset as loaded, the
// dataset as it currently stands, and the outcome of the last operation.
//
// Service methods lock the session for the duration of an operation, so two
// requests from the same browser never interleave.
type Session struct {
	ID        string
	CreatedAt time.Time

	lastSeen atomic.Int64

	mu       sync.Mutex
	source   string
	original *Dataset
	current  *Dataset
	report   *Report
	program  string
}

// SessionSnapshot is a read-only copy of session state for rendering.
// Datasets are shared with the session and must not be modified.
type SessionSnapshot struct {
	ID       string
	Source   string
	Original *Dataset
	Current  *Dataset
	Report   *Report
	Program  string
	LastSeen time.Time
}

// HasData reports whether a dataset has been loaded.
func (s SessionSnapshot) HasData() bool { return s.Current != nil }

// Modified reports whether the current dataset differs from the loaded one.
func (s SessionSnapshot) Modified() bool {
	return s.Current != nil && s.Current != s.Original
}

// Snapshot returns the current state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		ID:       s.ID,
		Source:   s.source,
		Original: s.original,
		Current:  s.current,
		Report:   s.report,
		Program:  s.program,
		LastSeen: s.idleSince(),
	}
}

// load replaces both datasets. Caller holds mu.
func (s *Session) load(source string, ds *Dataset) {
	s.source = source
	s.original = ds
	s.current = ds
	s.report = nil
	s.program = ""
}

// touch and idleSince avoid mu so that sweeping never waits on a running job.
func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

func (s *Session) idleSince() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// SessionStore keeps sessions in memory with idle expiry.
type SessionStore struct {
	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a store. Sessions idle for longer than ttl expire;
// when maxSessions is reached the least recently used session is evicted.
func NewSessionStore(ttl time.Duration, maxSessions int) *SessionStore {
	return &SessionStore{
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a new empty session.
func (st *SessionStore) Create() *Session {
	now := st.now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now}
	s.touch(now)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		st.evictOldestLocked()
	}
	st.sessions[s.ID] = s
	return s
}

func (st *SessionStore) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, s := range st.sessions {
		seen := s.idleSince()
		if oldestID == "" || seen.Before(oldest) {
			oldestID, oldest = id, seen
		}
	}
	delete(st.sessions, oldestID)
}

// Get returns a live session and refreshes its expiry.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := st.now()
	if st.expired(s, now) {
		st.Delete(id)
		return nil, ErrSessionNotFound
	}
	s.touch(now)
	return s, nil
}

func (st *SessionStore) expired(s *Session, now time.Time) bool {
	return st.ttl > 0 && now.Sub(s.idleSince()) > st.ttl
}

// Delete removes a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Sweep removes expired sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	now := st.now()
	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, s := range st.sessions {
		if st.expired(s, now) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
