package place

import (
	"context"
	"sort"
	"sync"
	"time"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/sentinel"
)

// InMemoryStore implements the slot pool contract with a mutex standing in
// for the database's conditional update. It exists so orchestrator tests and
// local runs exercise the exact same at-most-one-winner semantics.
type InMemoryStore struct {
	mu     sync.Mutex
	places map[id.PlaceID]*models.Place
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{places: make(map[id.PlaceID]*models.Place)}
}

func (s *InMemoryStore) ListAvailable(_ context.Context, centreID id.CentreID, begin, end time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{})
	var dates []time.Time
	for _, p := range s.places {
		if p.CentreID != centreID || p.IsBooked() {
			continue
		}
		if p.At.Before(begin) || p.At.After(end) {
			continue
		}
		key := p.At.UnixNano()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dates = append(dates, p.At)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *InMemoryStore) FindAndAssign(_ context.Context, candidateID id.CandidateID, centreID id.CentreID, at, bookedAt time.Time) (*models.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Deterministic pick among equal free places, matching the SQL ORDER BY id.
	var candidates []*models.Place
	for _, p := range s.places {
		if p.CentreID == centreID && p.At.Equal(at) && !p.IsBooked() {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, sentinel.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ID.String() < candidates[j].ID.String()
	})

	p := candidates[0]
	cid := candidateID
	t := bookedAt
	p.BookedBy = &cid
	p.BookedAt = &t
	clone := *p
	return &clone, nil
}

func (s *InMemoryStore) Release(_ context.Context, placeID id.PlaceID, candidateID id.CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.places[placeID]
	if !ok || p.BookedBy == nil || *p.BookedBy != candidateID {
		return sentinel.ErrConflict
	}
	p.BookedBy = nil
	p.BookedAt = nil
	return nil
}

func (s *InMemoryStore) FindByCandidate(_ context.Context, candidateID id.CandidateID) (*models.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.Place
	for _, p := range s.places {
		if p.BookedBy != nil && *p.BookedBy == candidateID {
			if found == nil || p.At.Before(found.At) {
				found = p
			}
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	clone := *found
	return &clone, nil
}

func (s *InMemoryStore) BulkCreate(_ context.Context, places []*models.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range places {
		clone := *p
		s.places[p.ID] = &clone
	}
	return nil
}

func (s *InMemoryStore) DeleteUnassigned(_ context.Context, centreID id.CentreID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for pid, p := range s.places {
		if p.CentreID == centreID && p.At.Equal(at) && !p.IsBooked() {
			delete(s.places, pid)
			n++
		}
	}
	return n, nil
}
