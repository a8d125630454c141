package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "candilib/pkg/platform/audit"
	"candilib/pkg/platform/audit/store/memory"
	"candilib/pkg/platform/audit/worker"
)

// flakyStore fails until the fault is cleared, then delegates to a memory
// store.
type flakyStore struct {
	mu       sync.Mutex
	failing  bool
	failures int
	inner    *memory.Store
}

func (s *flakyStore) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	failing := s.failing
	if failing {
		s.failures++
	}
	s.mu.Unlock()
	if failing {
		return errors.New("connection reset")
	}
	return s.inner.Append(ctx, event)
}

func (s *flakyStore) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *flakyStore) recover() {
	s.mu.Lock()
	s.failing = false
	s.mu.Unlock()
}

type WorkerSuite struct {
	suite.Suite
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) TestAppendsQueuedEvents() {
	store := memory.New()
	inbox := make(chan audit.Event, 8)
	w := worker.NewWorker(store, inbox, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		inbox <- audit.Event{Action: audit.ActionPlaceBooked, Timestamp: time.Now()}
	}

	s.Eventually(func() bool { return len(store.Events()) == 5 }, time.Second, 10*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *WorkerSuite) TestStoreFailureDoesNotStopTheWorker() {
	store := &flakyStore{failing: true, inner: memory.New()}
	inbox := make(chan audit.Event, 8)
	w := worker.NewWorker(store, inbox, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	inbox <- audit.Event{Action: audit.ActionMagicLinkSent}

	// The failing event is dropped; once the store recovers, later events land.
	s.Eventually(func() bool { return store.failureCount() == 1 }, time.Second, 10*time.Millisecond)
	store.recover()

	inbox <- audit.Event{Action: audit.ActionPlaceCancelled}

	s.Eventually(func() bool { return len(store.inner.Events()) == 1 }, time.Second, 10*time.Millisecond)
	s.Equal(audit.ActionPlaceCancelled, store.inner.Events()[0].Action)

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}
