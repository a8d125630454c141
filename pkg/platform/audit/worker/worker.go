package worker

import (
	"context"
	"log/slog"

	audit "candilib/pkg/platform/audit"
	txcontext "candilib/pkg/platform/tx"
)

const maxBatch = 64

// Worker consumes audit events from a channel and persists them. A store
// failure is logged and the events dropped; audit persistence must never take
// the booking path down with it.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
	runner *txcontext.Runner
}

// Option configures the worker.
type Option func(*Worker)

// WithTxRunner makes the worker append each drained batch inside one
// transaction instead of one statement per event.
func WithTxRunner(r *txcontext.Runner) Option {
	return func(w *Worker) { w.runner = r }
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{store: store, inbox: inbox, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			batch := w.drain(event)
			if err := w.append(ctx, batch); err != nil {
				w.logger.ErrorContext(ctx, "append audit events",
					"error", err,
					"count", len(batch),
				)
			}
		}
	}
}

// drain opportunistically collects events already waiting in the inbox so a
// burst lands as one batch.
func (w *Worker) drain(first audit.Event) []audit.Event {
	batch := []audit.Event{first}
	for len(batch) < maxBatch {
		select {
		case event := <-w.inbox:
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (w *Worker) append(ctx context.Context, batch []audit.Event) error {
	if w.runner == nil {
		for _, event := range batch {
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
		return nil
	}
	return w.runner.RunInTx(ctx, func(ctx context.Context) error {
		for _, event := range batch {
			if err := w.store.Append(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
}
