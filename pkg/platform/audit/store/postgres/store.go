package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "candilib/pkg/platform/audit"
	txcontext "candilib/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and shipped to Kafka by the outbox
// publisher. Kafka is the source of truth for audit events.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for deserialization by the consumer.
type outboxPayload struct {
	ID          string `json:"ID"`
	Category    string `json:"Category"`
	Timestamp   string `json:"Timestamp"`
	CandidateID string `json:"CandidateID,omitempty"`
	Action      string `json:"Action"`
	CentreID    string `json:"CentreID,omitempty"`
	PlaceAt     string `json:"PlaceAt,omitempty"`
	Reason      string `json:"Reason,omitempty"`
	Email       string `json:"Email,omitempty"`
	RequestID   string `json:"RequestID,omitempty"`
	ClientIP    string `json:"ClientIP,omitempty"`
	UserAgent   string `json:"UserAgent,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(event.Action.Category()),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    string(event.Action),
		CentreID:  event.CentreID,
		PlaceAt:   event.PlaceAt,
		Reason:    event.Reason,
		Email:     event.Email,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		UserAgent: event.UserAgent,
	}
	if !event.CandidateID.IsNil() {
		payload.CandidateID = event.CandidateID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Aggregate by candidate when one is involved so a candidate's events
	// keep their relative order on the same partition.
	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.CandidateID.IsNil() {
		aggregateType = "candidate"
		aggregateID = event.CandidateID.String()
	}

	const query = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID, aggregateType, aggregateID, string(event.Action), payloadBytes, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
