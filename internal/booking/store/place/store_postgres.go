// Package place owns the shared slot pool. Assignment and release are single
// conditional updates at the storage layer: the application never does
// read-then-write on a slot's booking state.
package place

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/sentinel"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the slot pool on pgx. The pool is the hot path of
// the whole system, so it gets its own driver connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const placeColumns = `id, centre_id, date, booked_by, booked_at`

// ListAvailable returns the distinct date-times of free places for the
// centre within [begin, end], ordered ascending. Several inspectors can hold
// places at the same date-time; the listing collapses them to one entry.
func (s *PostgresStore) ListAvailable(ctx context.Context, centreID id.CentreID, begin, end time.Time) ([]time.Time, error) {
	const query = `
		SELECT DISTINCT date FROM places
		WHERE centre_id = $1 AND date BETWEEN $2 AND $3 AND booked_by IS NULL
		ORDER BY date
	`
	rows, err := s.pool.Query(ctx, query, uuid.UUID(centreID), begin, end)
	if err != nil {
		return nil, fmt.Errorf("list available places: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan place date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// FindAndAssign atomically books one free place matching centre and exact
// date-time for the candidate. Exactly one of any set of concurrent callers
// can win a given place; losers see sentinel.ErrNotFound. SKIP LOCKED keeps
// two bookers of the same date-time from serializing on the same row when a
// second free place exists.
func (s *PostgresStore) FindAndAssign(ctx context.Context, candidateID id.CandidateID, centreID id.CentreID, at, bookedAt time.Time) (*models.Place, error) {
	const query = `
		UPDATE places SET booked_by = $1, booked_at = $2
		WHERE id = (
			SELECT id FROM places
			WHERE centre_id = $3 AND date = $4 AND booked_by IS NULL
			ORDER BY id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + placeColumns

	row := s.pool.QueryRow(ctx, query, uuid.UUID(candidateID), bookedAt, uuid.UUID(centreID), at)
	p, err := scanPlace(row)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find and assign place: %w", err)
	}
	return p, nil
}

// Release atomically frees a place still held by the given candidate.
// Returns sentinel.ErrConflict when the place is no longer theirs, which a
// correct orchestrator never triggers.
func (s *PostgresStore) Release(ctx context.Context, placeID id.PlaceID, candidateID id.CandidateID) error {
	const query = `
		UPDATE places SET booked_by = NULL, booked_at = NULL
		WHERE id = $1 AND booked_by = $2
	`
	tag, err := s.pool.Exec(ctx, query, uuid.UUID(placeID), uuid.UUID(candidateID))
	if err != nil {
		return fmt.Errorf("release place: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// FindByCandidate returns the candidate's current place, if any. Business
// logic guarantees at most one; the query tolerates drift by taking the
// earliest.
func (s *PostgresStore) FindByCandidate(ctx context.Context, candidateID id.CandidateID) (*models.Place, error) {
	const query = `
		SELECT ` + placeColumns + ` FROM places
		WHERE booked_by = $1
		ORDER BY date
		LIMIT 1
	`
	p, err := scanPlace(s.pool.QueryRow(ctx, query, uuid.UUID(candidateID)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find place by candidate: %w", err)
	}
	return p, nil
}

// BulkCreate inserts planning places. Duplicate (centre, date) rows are
// expected: one row per inspector.
func (s *PostgresStore) BulkCreate(ctx context.Context, places []*models.Place) error {
	if len(places) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range places {
		batch.Queue(
			`INSERT INTO places (id, centre_id, date) VALUES ($1, $2, $3)`,
			uuid.UUID(p.ID), uuid.UUID(p.CentreID), p.At,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range places {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("bulk create places: %w", err)
		}
	}
	return nil
}

// DeleteUnassigned removes free places for a centre on the given date-time,
// used when planning is withdrawn. Booked places are never touched.
func (s *PostgresStore) DeleteUnassigned(ctx context.Context, centreID id.CentreID, at time.Time) (int64, error) {
	const query = `
		DELETE FROM places
		WHERE centre_id = $1 AND date = $2 AND booked_by IS NULL
	`
	tag, err := s.pool.Exec(ctx, query, uuid.UUID(centreID), at)
	if err != nil {
		return 0, fmt.Errorf("delete unassigned places: %w", err)
	}
	return tag.RowsAffected(), nil
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanPlace(row pgxRow) (*models.Place, error) {
	var (
		p        models.Place
		pid, cid uuid.UUID
		bookedBy *uuid.UUID
	)
	err := row.Scan(&pid, &cid, &p.At, &bookedBy, &p.BookedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	p.ID = id.PlaceID(pid)
	p.CentreID = id.CentreID(cid)
	if bookedBy != nil {
		candID := id.CandidateID(*bookedBy)
		p.BookedBy = &candID
	}
	return &p, nil
}
