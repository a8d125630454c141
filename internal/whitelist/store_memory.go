package whitelist

import (
	"context"
	"sort"
	"sync"

	"candilib/pkg/platform/sentinel"
)

// InMemoryStore is the test double for the whitelist.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]Entry)}
}

func (s *InMemoryStore) Add(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.Email]; ok {
		return nil
	}
	s.entries[entry.Email] = entry
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[email]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, email)
	return nil
}

func (s *InMemoryStore) Contains(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[email]
	return ok, nil
}

func (s *InMemoryStore) List(_ context.Context, department string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []Entry
	for _, e := range s.entries {
		if e.Department == department {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AddedAt.After(entries[j].AddedAt) })
	return entries, nil
}
