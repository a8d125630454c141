package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS candidates (
	id UUID PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	birth_name TEXT NOT NULL DEFAULT '',
	neph TEXT NOT NULL DEFAULT '',
	department TEXT NOT NULL DEFAULT '',
	etg_succeeded_at TIMESTAMPTZ,
	last_exam_failed_at TIMESTAMPTZ,
	failure_count INT NOT NULL DEFAULT 0,
	can_book_from TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS centres (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	department TEXT NOT NULL,
	address TEXT NOT NULL DEFAULT '',
	UNIQUE (name, department)
);

CREATE TABLE IF NOT EXISTS places (
	id UUID PRIMARY KEY,
	centre_id UUID NOT NULL REFERENCES centres(id),
	date TIMESTAMPTZ NOT NULL,
	booked_by UUID REFERENCES candidates(id),
	booked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_places_available
	ON places (centre_id, date) WHERE booked_by IS NULL;
CREATE INDEX IF NOT EXISTS idx_places_booked_by
	ON places (booked_by) WHERE booked_by IS NOT NULL;

CREATE TABLE IF NOT EXISTS archived_places (
	id UUID PRIMARY KEY,
	candidate_id UUID NOT NULL,
	centre_id UUID NOT NULL,
	date TIMESTAMPTZ NOT NULL,
	reason TEXT NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_archived_places_candidate
	ON archived_places (candidate_id, archived_at DESC);

CREATE TABLE IF NOT EXISTS whitelisted_emails (
	email TEXT PRIMARY KEY,
	department TEXT NOT NULL DEFAULT '',
	added_by TEXT NOT NULL DEFAULT '',
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS admins (
	email TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	departments TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending
	ON outbox (created_at) WHERE published_at IS NULL;
`

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
