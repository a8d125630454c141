package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"candilib/internal/booking/models"
	"candilib/internal/jwtauth"
	"candilib/internal/notification"
	"candilib/internal/platform/metrics"
	id "candilib/pkg/domain"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/email"
	"candilib/pkg/platform/audit"
	"candilib/pkg/platform/sentinel"
	"candilib/pkg/secrets"
)

// CandidateStore is the slice of the candidate store the auth flow needs.
type CandidateStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Candidate, error)
	Save(ctx context.Context, c *models.Candidate) error
}

// Whitelist gates magic-link issuance.
type Whitelist interface {
	Contains(ctx context.Context, email string) (bool, error)
}

// Service implements the two entry doors: candidate magic links and admin
// password logins.
type Service struct {
	candidates   CandidateStore
	admins       AdminStore
	whitelist    Whitelist
	tokens       *jwtauth.Service
	notifier     notification.Notifier
	recorder     *audit.Recorder
	metrics      *metrics.Metrics
	logger       *slog.Logger
	baseURL      string
	magicLinkTTL time.Duration
	adminTTL     time.Duration
}

func NewService(
	candidates CandidateStore,
	admins AdminStore,
	wl Whitelist,
	tokens *jwtauth.Service,
	notifier notification.Notifier,
	recorder *audit.Recorder,
	m *metrics.Metrics,
	logger *slog.Logger,
	baseURL string,
	magicLinkTTL, adminTTL time.Duration,
) *Service {
	return &Service{
		candidates:   candidates,
		admins:       admins,
		whitelist:    wl,
		tokens:       tokens,
		notifier:     notifier,
		recorder:     recorder,
		metrics:      m,
		logger:       logger,
		baseURL:      baseURL,
		magicLinkTTL: magicLinkTTL,
		adminTTL:     adminTTL,
	}
}

// SendMagicLink mails a signed connection link to a whitelisted email. The
// candidate record is created on first contact so the booking funnel always
// has one to work with.
func (s *Service) SendMagicLink(ctx context.Context, rawEmail string) error {
	addr := strings.ToLower(strings.TrimSpace(rawEmail))
	if addr == "" || !strings.Contains(addr, "@") {
		return dErrors.New(dErrors.CodeBadRequest, "Adresse email invalide")
	}

	ok, err := s.whitelist.Contains(ctx, addr)
	if err != nil {
		return fmt.Errorf("check whitelist: %w", err)
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "Votre adresse email n'est pas reconnue")
	}

	cand, err := s.candidates.FindByEmail(ctx, addr)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return fmt.Errorf("find candidate: %w", err)
		}
		first, last := email.DeriveNameFromEmail(addr)
		cand = &models.Candidate{
			ID:        id.NewCandidateID(),
			Email:     addr,
			FirstName: first,
			LastName:  last,
		}
		if err := s.candidates.Save(ctx, cand); err != nil {
			return fmt.Errorf("create candidate: %w", err)
		}
	}

	token, err := s.tokens.GenerateCandidateToken(cand.ID, s.magicLinkTTL)
	if err != nil {
		return fmt.Errorf("mint magic link token: %w", err)
	}
	link := s.baseURL + "/candidat?token=" + url.QueryEscape(token)

	if err := s.notifier.SendMagicLink(ctx, addr, link); err != nil {
		s.metrics.IncMailFailure("magic_link")
		return dErrors.Wrap(dErrors.CodeInternal, "l'envoi du lien de connexion a échoué", err)
	}

	s.metrics.MagicLinksSent.Inc()
	s.recorder.Emit(ctx, audit.Event{
		CandidateID: cand.ID,
		Action:      audit.ActionMagicLinkSent,
		Email:       addr,
	})
	return nil
}

// AdminLogin verifies the password and returns a signed admin token. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *Service) AdminLogin(ctx context.Context, rawEmail, password string) (string, error) {
	addr := strings.ToLower(strings.TrimSpace(rawEmail))

	admin, err := s.admins.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "Identifiants invalides")
		}
		return "", fmt.Errorf("find admin: %w", err)
	}

	if err := secrets.Verify(password, admin.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "Identifiants invalides")
		}
		return "", err
	}

	token, err := s.tokens.GenerateAdminToken(admin.Email, s.adminTTL)
	if err != nil {
		return "", fmt.Errorf("mint admin token: %w", err)
	}

	s.recorder.Emit(ctx, audit.Event{
		Action: audit.ActionAdminLoggedIn,
		Email:  admin.Email,
	})
	return token, nil
}
