package screenshot

import (
	"sync"

	"github.com/google/uuid"
)

// Sessions is a registry of consumer sessions sharing one resolver.
type Sessions struct {
	resolver    *Resolver
	maxSessions int

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions creates a registry. maxSessions <= 0 means unlimited.
func NewSessions(resolver *Resolver, maxSessions int) *Sessions {
	return &Sessions{
		resolver:    resolver,
		maxSessions: maxSessions,
		sessions:    make(map[string]*Session),
	}
}

// Create registers a new idle session with a random ID.
func (m *Sessions) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return nil, ErrTooManySessions
	}

	session := NewSession(uuid.New().String(), m.resolver)
	m.sessions[session.ID()] = session
	return session, nil
}

// Get looks up a session by ID.
func (m *Sessions) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Close tears down and forgets the session with the given ID.
func (m *Sessions) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.Close()
	return nil
}

// CloseAll tears down every session.
func (m *Sessions) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Len returns the number of open sessions.
func (m *Sessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
