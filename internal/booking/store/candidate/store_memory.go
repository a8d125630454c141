package candidate

import (
	"context"
	"sync"
	"time"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/sentinel"
)

// InMemoryStore keeps candidates in a map. It backs unit tests and local
// runs without PostgreSQL.
type InMemoryStore struct {
	mu         sync.RWMutex
	candidates map[id.CandidateID]*models.Candidate
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{candidates: make(map[id.CandidateID]*models.Candidate)}
}

func (s *InMemoryStore) Save(_ context.Context, c *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	s.candidates[c.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.candidates[candidateID]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.candidates {
		if c.Email == email {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// UpdateCanBookFrom mirrors the SQL store's monotonic write: an earlier
// restriction never replaces a later one.
func (s *InMemoryStore) UpdateCanBookFrom(_ context.Context, candidateID id.CandidateID, canBookFrom time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[candidateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.CanBookFrom == nil || c.CanBookFrom.Before(canBookFrom) {
		t := canBookFrom
		c.CanBookFrom = &t
	}
	return nil
}

func (s *InMemoryStore) RecordExamFailure(_ context.Context, candidateID id.CandidateID, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[candidateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	t := failedAt
	c.LastExamFailedAt = &t
	c.FailureCount++
	return nil
}
