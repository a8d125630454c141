// Package whitelist controls who may receive a magic link. Only whitelisted
// emails can enter the booking funnel.
package whitelist

import (
	"context"
	"time"
)

// Entry is one whitelisted email.
type Entry struct {
	Email      string
	Department string
	AddedBy    string
	AddedAt    time.Time
}

// Store persists whitelist entries.
type Store interface {
	Add(ctx context.Context, entry Entry) error
	Remove(ctx context.Context, email string) error
	Contains(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, department string) ([]Entry, error)
}
