package audit

import (
	"context"
	"log/slog"
	"time"

	"candilib/pkg/requestcontext"
)

// Recorder is the producer side of the audit pipeline. Emission never blocks
// domain code: a full inbox drops the event with a log line rather than
// stalling a booking.
type Recorder struct {
	inbox  chan<- Event
	logger *slog.Logger
}

// NewRecorder builds a recorder feeding the given inbox.
func NewRecorder(inbox chan<- Event, logger *slog.Logger) *Recorder {
	return &Recorder{inbox: inbox, logger: logger}
}

// Emit enriches the event from request context and queues it.
func (r *Recorder) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}

	select {
	case r.inbox <- event:
	default:
		r.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
	}
}

// NopRecorder returns a recorder whose events go nowhere. For tests.
func NopRecorder() *Recorder {
	ch := make(chan Event, 1)
	go func() {
		for range ch {
		}
	}()
	return &Recorder{inbox: ch, logger: slog.Default()}
}
