package negotiation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns every live session, keyed by session id. The store lock only
// guards the map; each session carries its own lock for state mutation, so a
// slow negotiation never blocks unrelated sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *slog.Logger
}

func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// GetOrCreate returns the session for id, creating it if absent. An empty id
// gets a generated one; the effective id is returned.
func (s *Store) GetOrCreate(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess = newSession(id, time.Now())
	s.sessions[id] = sess
	s.log.Info("session_created", "session_id", id)
	return sess
}

func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ClearOldSessions removes every session created before now-maxAge,
// regardless of its current state - sessions mid-negotiation included. This
// is a deliberately blunt age-based sweep, not a retention policy.
func (s *Store) ClearOldSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("sessions_cleared", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}
