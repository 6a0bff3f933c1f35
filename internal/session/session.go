// Package session serializes work per conversation: at most one turn of a
// given conversation mutates its history at a time, while distinct
// conversations never block each other.
package session

import "sync"

type Session struct {
	id string
	mu sync.Mutex
}

func (s *Session) ID() string { return s.id }

// Lock is held for the whole read-modify-write cycle of a turn.
func (s *Session) Lock() { s.mu.Lock() }

func (s *Session) Unlock() { s.mu.Unlock() }

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for an id, creating it on first access. Two
// concurrent first-accesses resolve to the same session.
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok = s.sessions[id]; ok {
		return sess
	}

	sess = &Session{id: id}
	s.sessions[id] = sess

	return sess
}
