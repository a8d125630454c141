package candidate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/sentinel"
	txcontext "candilib/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore persists candidates in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed candidate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const candidateColumns = `id, email, first_name, last_name, birth_name, neph, department,
	etg_succeeded_at, last_exam_failed_at, failure_count, can_book_from`

func (s *PostgresStore) Save(ctx context.Context, c *models.Candidate) error {
	if c == nil {
		return fmt.Errorf("candidate is required")
	}
	query := `
		INSERT INTO candidates (` + candidateColumns + `, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			birth_name = EXCLUDED.birth_name,
			neph = EXCLUDED.neph,
			department = EXCLUDED.department,
			etg_succeeded_at = EXCLUDED.etg_succeeded_at,
			last_exam_failed_at = EXCLUDED.last_exam_failed_at,
			failure_count = EXCLUDED.failure_count,
			can_book_from = EXCLUDED.can_book_from,
			updated_at = now()
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Email, c.FirstName, c.LastName, c.BirthName, c.NEPH,
		c.Department, c.ETGSucceededAt, c.LastExamFailedAt, c.FailureCount, c.CanBookFrom,
	)
	if err != nil {
		return fmt.Errorf("save candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(candidateID)))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE email = $1`
	return s.scanOne(s.execer(ctx).QueryRowContext(ctx, query, email))
}

// UpdateCanBookFrom persists a new booking restriction. The WHERE clause
// keeps the stored value monotonic even if two penalty writers race.
func (s *PostgresStore) UpdateCanBookFrom(ctx context.Context, candidateID id.CandidateID, canBookFrom time.Time) error {
	query := `
		UPDATE candidates
		SET can_book_from = $2, updated_at = now()
		WHERE id = $1 AND (can_book_from IS NULL OR can_book_from < $2)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(candidateID), canBookFrom); err != nil {
		return fmt.Errorf("update can_book_from: %w", err)
	}
	return nil
}

// RecordExamFailure bumps the failure counter and stamps the failure date.
func (s *PostgresStore) RecordExamFailure(ctx context.Context, candidateID id.CandidateID, failedAt time.Time) error {
	query := `
		UPDATE candidates
		SET last_exam_failed_at = $2, failure_count = failure_count + 1, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(candidateID), failedAt); err != nil {
		return fmt.Errorf("record exam failure: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Candidate, error) {
	var (
		c   models.Candidate
		uid uuid.UUID
	)
	err := row.Scan(&uid, &c.Email, &c.FirstName, &c.LastName, &c.BirthName, &c.NEPH,
		&c.Department, &c.ETGSucceededAt, &c.LastExamFailedAt, &c.FailureCount, &c.CanBookFrom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	c.ID = id.CandidateID(uid)
	return &c, nil
}
