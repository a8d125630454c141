package auth

import (
	"context"
	"sync"

	"candilib/pkg/platform/sentinel"
)

// InMemoryAdminStore is the test double for admin accounts.
type InMemoryAdminStore struct {
	mu     sync.RWMutex
	admins map[string]Admin
}

func NewMemoryAdminStore() *InMemoryAdminStore {
	return &InMemoryAdminStore{admins: make(map[string]Admin)}
}

func (s *InMemoryAdminStore) FindByEmail(_ context.Context, email string) (*Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[email]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := a
	return &clone, nil
}

func (s *InMemoryAdminStore) Save(_ context.Context, admin *Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[admin.Email] = *admin
	return nil
}
