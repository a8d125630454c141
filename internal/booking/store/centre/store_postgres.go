package centre

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"candilib/internal/booking/models"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// PostgresStore persists exam centres in PostgreSQL. Centres are reference
// data: inserts come from planning administration, reads from everywhere.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, c *models.ExamCentre) error {
	if c == nil {
		return fmt.Errorf("centre is required")
	}
	query := `
		INSERT INTO centres (id, name, department, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name, department) DO UPDATE SET address = EXCLUDED.address
	`
	if _, err := s.db.ExecContext(ctx, query, uuid.UUID(c.ID), c.Name, c.Department, c.Address); err != nil {
		return fmt.Errorf("save centre: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, centreID id.CentreID) (*models.ExamCentre, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, department, address FROM centres WHERE id = $1`, uuid.UUID(centreID))
	return scanCentre(row)
}

func (s *PostgresStore) FindByNameAndDepartment(ctx context.Context, name, department string) (*models.ExamCentre, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, department, address FROM centres WHERE name = $1 AND department = $2`,
		name, department)
	return scanCentre(row)
}

func (s *PostgresStore) List(ctx context.Context, department string) ([]*models.ExamCentre, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, department, address FROM centres WHERE department = $1 ORDER BY name`,
		department)
	if err != nil {
		return nil, fmt.Errorf("list centres: %w", err)
	}
	defer rows.Close()

	var centres []*models.ExamCentre
	for rows.Next() {
		var (
			c   models.ExamCentre
			uid uuid.UUID
		)
		if err := rows.Scan(&uid, &c.Name, &c.Department, &c.Address); err != nil {
			return nil, fmt.Errorf("scan centre: %w", err)
		}
		c.ID = id.CentreID(uid)
		centres = append(centres, &c)
	}
	return centres, rows.Err()
}

func scanCentre(row *sql.Row) (*models.ExamCentre, error) {
	var (
		c   models.ExamCentre
		uid uuid.UUID
	)
	if err := row.Scan(&uid, &c.Name, &c.Department, &c.Address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan centre: %w", err)
	}
	c.ID = id.CentreID(uid)
	return &c, nil
}
