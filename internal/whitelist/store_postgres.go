package whitelist

import (
	"context"
	"database/sql"
	"fmt"

	"candilib/pkg/platform/sentinel"
)

// PostgresStore persists the whitelist in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, entry Entry) error {
	const query = `
		INSERT INTO whitelisted_emails (email, department, added_by, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, entry.Email, entry.Department, entry.AddedBy, entry.AddedAt); err != nil {
		return fmt.Errorf("add whitelist entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM whitelisted_emails WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("remove whitelist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove whitelist entry: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Contains(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM whitelisted_emails WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check whitelist entry: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context, department string) ([]Entry, error) {
	const query = `
		SELECT email, department, added_by, added_at
		FROM whitelisted_emails
		WHERE department = $1
		ORDER BY added_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, department)
	if err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Email, &e.Department, &e.AddedBy, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scan whitelist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
