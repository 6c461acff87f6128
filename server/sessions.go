package server

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/xenoscript/session"
)

// Session is a remote client's session. Its graph is only touched on the
// worker goroutine.
type Session struct {
	ID string
	*session.Session

	lastUsed time.Time
}

// SessionStore manages remote sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	nextID   atomic.Uint64
	now      func() time.Time
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Add registers sess under a fresh id.
func (s *SessionStore) Add(sess *session.Session) *Session {
	id := fmt.Sprintf("s-%d", s.nextID.Add(1))
	out := &Session{ID: id, Session: sess, lastUsed: s.now()}

	s.mu.Lock()
	s.sessions[id] = out
	s.mu.Unlock()
	return out
}

// Get retrieves a session by ID and marks it used.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		sess.lastUsed = s.now()
	}
	return sess, ok
}

// Destroy removes a session. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// IDs lists open session ids in sorted order.
func (s *SessionStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sweep removes sessions that haven't been used within ttl and returns
// them.
func (s *SessionStore) Sweep(ttl time.Duration) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var removed []*Session
	for id, sess := range s.sessions {
		if sess.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			removed = append(removed, sess)
		}
	}
	return removed
}

// StartSweeper runs periodic sweeps in the background, passing removed
// sessions to onExpire. A non-positive interval sweeps once per ttl; a
// non-positive ttl starts nothing. Returns a stop function that is safe to
// call more than once.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration, onExpire func(*Session)) func() {
	if ttl <= 0 {
		return func() {}
	}
	if interval <= 0 {
		interval = ttl
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				for _, sess := range s.Sweep(ttl) {
					if onExpire != nil {
						onExpire(sess)
					}
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
