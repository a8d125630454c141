// Package auth issues candidate magic links and admin tokens. Candidates
// never hold passwords: a whitelisted email receives a signed link, and the
// link's token is the credential.
package auth

import (
	"context"
	"time"
)

// Admin is a back-office account with a bcrypt password hash.
type Admin struct {
	Email        string
	PasswordHash string
	// Departments lists the departments the admin manages, comma separated.
	Departments string
	CreatedAt   time.Time
}

// AdminStore persists admin accounts.
type AdminStore interface {
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	Save(ctx context.Context, admin *Admin) error
}
