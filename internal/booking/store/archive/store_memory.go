package archive

import (
	"context"
	"sync"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
)

// InMemoryStore keeps archived places in a slice for tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []models.ArchivedPlace
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry models.ArchivedPlace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByCandidate(_ context.Context, candidateID id.CandidateID) ([]models.ArchivedPlace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ArchivedPlace
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].CandidateID == candidateID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// All returns every archived entry, oldest first. Test helper.
func (s *InMemoryStore) All() []models.ArchivedPlace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ArchivedPlace, len(s.entries))
	copy(out, s.entries)
	return out
}
