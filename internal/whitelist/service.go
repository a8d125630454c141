package whitelist

import (
	"context"
	"fmt"
	"strings"

	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/audit"
	"candilib/pkg/requestcontext"
)

// Service wraps the store with normalization and audit.
type Service struct {
	store    Store
	recorder *audit.Recorder
}

func NewService(store Store, recorder *audit.Recorder) *Service {
	return &Service{store: store, recorder: recorder}
}

// Add whitelists an email for the department. The acting admin comes from
// the request context.
func (s *Service) Add(ctx context.Context, email, department string) error {
	email = normalize(email)
	if email == "" || !strings.Contains(email, "@") {
		return dErrors.New(dErrors.CodeBadRequest, "Adresse email invalide")
	}
	entry := Entry{
		Email:      email,
		Department: department,
		AddedBy:    requestcontext.AdminEmail(ctx),
		AddedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.Add(ctx, entry); err != nil {
		return fmt.Errorf("whitelist add: %w", err)
	}
	s.recorder.Emit(ctx, audit.Event{
		Action: audit.ActionWhitelistAdded,
		Email:  email,
	})
	return nil
}

func (s *Service) Remove(ctx context.Context, email string) error {
	email = normalize(email)
	if err := s.store.Remove(ctx, email); err != nil {
		return err
	}
	s.recorder.Emit(ctx, audit.Event{
		Action: audit.ActionWhitelistRemoved,
		Email:  email,
	})
	return nil
}

func (s *Service) List(ctx context.Context, department string) ([]Entry, error) {
	return s.store.List(ctx, department)
}

// Contains reports whether the email may receive a magic link.
func (s *Service) Contains(ctx context.Context, email string) (bool, error) {
	return s.store.Contains(ctx, normalize(email))
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
