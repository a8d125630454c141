package archive

import (
	"context"
	"database/sql"
	"fmt"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
	txcontext "candilib/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore appends archived places. Rows are write-once: history must
// survive planning rewrites and candidate deletion.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry models.ArchivedPlace) error {
	const query = `
		INSERT INTO archived_places (id, candidate_id, centre_id, date, reason, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(), uuid.UUID(entry.CandidateID), uuid.UUID(entry.CentreID),
		entry.At, string(entry.Reason), entry.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("append archived place: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]models.ArchivedPlace, error) {
	const query = `
		SELECT candidate_id, centre_id, date, reason, archived_at
		FROM archived_places
		WHERE candidate_id = $1
		ORDER BY archived_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(candidateID))
	if err != nil {
		return nil, fmt.Errorf("list archived places: %w", err)
	}
	defer rows.Close()

	var entries []models.ArchivedPlace
	for rows.Next() {
		var (
			e        models.ArchivedPlace
			cid, ctr uuid.UUID
			reason   string
		)
		if err := rows.Scan(&cid, &ctr, &e.At, &reason, &e.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan archived place: %w", err)
		}
		e.CandidateID = id.CandidateID(cid)
		e.CentreID = id.CentreID(ctr)
		e.Reason = models.ArchiveReason(reason)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
