// Package directory resolves user identifiers to display identities. The
// real directory lives outside this service; deployments plug in whatever
// implementation matches their identity backend.
package directory

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownUser is returned when a user ID has no directory entry.
var ErrUnknownUser = errors.New("directory: unknown user")

// User is a resolved directory entry.
type User struct {
	ID          string
	DisplayName string
	Email       string
}

// Directory looks up users by ID.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*User, error)
}

// Static is an in-memory Directory, used in tests and in deployments that
// provision users up front. Logins register entries while protocol requests
// look them up, so access is guarded by a lock.
type Static struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewStatic creates a Static directory from the given entries.
func NewStatic(users ...User) *Static {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &Static{users: m}
}

// Add registers or replaces an entry.
func (s *Static) Add(u User) {
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
}

// Lookup implements Directory.
func (s *Static) Lookup(ctx context.Context, userID string) (*User, error) {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownUser
	}
	return &u, nil
}
