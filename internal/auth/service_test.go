package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"candilib/internal/booking/store/candidate"
	"candilib/internal/jwtauth"
	"candilib/internal/notification/mocks"
	"candilib/internal/platform/metrics"
	"candilib/internal/whitelist"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/audit"
	"candilib/pkg/secrets"
)

type AuthSuite struct {
	suite.Suite

	ctrl       *gomock.Controller
	notifier   *mocks.MockNotifier
	candidates *candidate.InMemoryStore
	admins     *InMemoryAdminStore
	wl         *whitelist.InMemoryStore
	tokens     *jwtauth.Service
	svc        *Service
	ctx        context.Context
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthSuite))
}

func (s *AuthSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.candidates = candidate.NewMemory()
	s.admins = NewMemoryAdminStore()
	s.wl = whitelist.NewMemory()
	s.tokens = jwtauth.NewService("test-key", "candilib", "candilib-api")
	s.ctx = context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(
		s.candidates,
		s.admins,
		s.wl,
		s.tokens,
		s.notifier,
		audit.NopRecorder(),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
		"http://localhost:8080",
		30*time.Minute,
		24*time.Hour,
	)
}

func (s *AuthSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *AuthSuite) whitelistEmail(addr string) {
	s.Require().NoError(s.wl.Add(s.ctx, whitelist.Entry{Email: addr, Department: "93"}))
}

func (s *AuthSuite) TestMagicLinkCreatesCandidateAndMintsValidToken() {
	s.whitelistEmail("jean.dupont@example.com")

	var sentLink string
	s.notifier.EXPECT().
		SendMagicLink(gomock.Any(), "jean.dupont@example.com", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, link string) error {
			sentLink = link
			return nil
		})

	s.Require().NoError(s.svc.SendMagicLink(s.ctx, " Jean.Dupont@Example.com "))

	cand, err := s.candidates.FindByEmail(s.ctx, "jean.dupont@example.com")
	s.Require().NoError(err)
	s.Equal("Jean", cand.FirstName)
	s.Equal("Dupont", cand.LastName)

	// The mailed link carries a token the middleware would accept.
	s.Require().Contains(sentLink, "http://localhost:8080/candidat?token=")
	token := sentLink[len("http://localhost:8080/candidat?token="):]
	got, err := s.tokens.ExtractCandidateID(token)
	s.Require().NoError(err)
	s.Equal(cand.ID, got)
}

func (s *AuthSuite) TestMagicLinkReusesExistingCandidate() {
	s.whitelistEmail("jean@example.com")
	s.notifier.EXPECT().SendMagicLink(gomock.Any(), "jean@example.com", gomock.Any()).Return(nil).Times(2)

	s.Require().NoError(s.svc.SendMagicLink(s.ctx, "jean@example.com"))
	first, err := s.candidates.FindByEmail(s.ctx, "jean@example.com")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.SendMagicLink(s.ctx, "jean@example.com"))
	second, err := s.candidates.FindByEmail(s.ctx, "jean@example.com")
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
}

func (s *AuthSuite) TestMagicLinkRejectsUnlistedEmail() {
	err := s.svc.SendMagicLink(s.ctx, "inconnu@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AuthSuite) TestMagicLinkMailFailureIsAnError() {
	s.whitelistEmail("jean@example.com")
	s.notifier.EXPECT().
		SendMagicLink(gomock.Any(), "jean@example.com", gomock.Any()).
		Return(errors.New("smtp down"))

	err := s.svc.SendMagicLink(s.ctx, "jean@example.com")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *AuthSuite) TestAdminLogin() {
	hash, err := secrets.Hash("s3cret")
	s.Require().NoError(err)
	s.Require().NoError(s.admins.Save(s.ctx, &Admin{
		Email:        "admin@example.com",
		PasswordHash: hash,
		Departments:  "93",
	}))

	s.Run("valid credentials", func() {
		token, err := s.svc.AdminLogin(s.ctx, "Admin@Example.com", "s3cret")
		s.Require().NoError(err)

		email, err := s.tokens.ExtractAdminEmail(token)
		s.Require().NoError(err)
		s.Equal("admin@example.com", email)
	})

	s.Run("wrong password", func() {
		_, err := s.svc.AdminLogin(s.ctx, "admin@example.com", "wrong")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown admin", func() {
		_, err := s.svc.AdminLogin(s.ctx, "ghost@example.com", "s3cret")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
