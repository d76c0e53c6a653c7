// Package state holds the in-memory stores the client views read and
// mutate. Stores are plain values constructed once and passed to whoever
// needs them.
package state

import (
	"sync"

	"github.com/atinyakov/g3chat/internal/models"
)

// Session holds the signed-in user and the authentication flag. Callers keep
// the two consistent.
type Session struct {
	mu            sync.RWMutex
	user          *models.User
	authenticated bool
}

// NewSession returns a signed-out Session.
func NewSession() *Session {
	return &Session{}
}

// SetUser replaces the current user; nil clears it.
func (s *Session) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	cp := *u
	s.user = &cp
}

// SetAuthenticated sets the authentication flag.
func (s *Session) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

// Logout clears the user and the flag.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.authenticated = false
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	return &cp
}

// IsAuthenticated reports the authentication flag.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}
