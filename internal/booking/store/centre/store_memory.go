package centre

import (
	"context"
	"sort"
	"sync"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/sentinel"
)

// InMemoryStore keeps centres in a map for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	centres map[id.CentreID]*models.ExamCentre
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{centres: make(map[id.CentreID]*models.ExamCentre)}
}

func (s *InMemoryStore) Save(_ context.Context, c *models.ExamCentre) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	s.centres[c.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, centreID id.CentreID) (*models.ExamCentre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.centres[centreID]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByNameAndDepartment(_ context.Context, name, department string) (*models.ExamCentre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.centres {
		if c.Name == name && c.Department == department {
			clone := *c
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, department string) ([]*models.ExamCentre, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var centres []*models.ExamCentre
	for _, c := range s.centres {
		if c.Department == department {
			clone := *c
			centres = append(centres, &clone)
		}
	}
	sort.Slice(centres, func(i, j int) bool { return centres[i].Name < centres[j].Name })
	return centres, nil
}
