package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"candilib/pkg/platform/sentinel"
)

// PostgresAdminStore persists admins in PostgreSQL.
type PostgresAdminStore struct {
	db *sql.DB
}

func NewPostgresAdminStore(db *sql.DB) *PostgresAdminStore {
	return &PostgresAdminStore{db: db}
}

func (s *PostgresAdminStore) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	var a Admin
	err := s.db.QueryRowContext(ctx,
		`SELECT email, password_hash, departments, created_at FROM admins WHERE email = $1`,
		email).Scan(&a.Email, &a.PasswordHash, &a.Departments, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	return &a, nil
}

func (s *PostgresAdminStore) Save(ctx context.Context, admin *Admin) error {
	const query = `
		INSERT INTO admins (email, password_hash, departments, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			departments = EXCLUDED.departments
	`
	if _, err := s.db.ExecContext(ctx, query,
		admin.Email, admin.PasswordHash, admin.Departments, admin.CreatedAt); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	return nil
}
