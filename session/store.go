package session

import (
	"sort"
	"sync"
)

// Store is the authoritative in-memory session map, keyed by participant id.
// The poll cycle is the single writer; concurrent readers get point-in-time
// copies. Sessions are never deleted during the process lifetime.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]Session)}
}

// Get returns a copy of the session for id.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Upsert replaces the stored session whole.
func (s *Store) Upsert(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

// All returns copies of every session, ordered by id.
func (s *Store) All() []Session {
	return s.filter(func(Session) bool { return true })
}

// Active returns copies of sessions currently studying.
func (s *Store) Active() []Session {
	return s.filter(func(sess Session) bool { return sess.IsActive })
}

// GameMode returns copies of sessions in the leveling variant.
func (s *Store) GameMode() []Session {
	return s.filter(func(sess Session) bool { return sess.GameMode })
}

// Len returns the number of known participants.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) filter(keep func(Session) bool) []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if keep(sess) {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
