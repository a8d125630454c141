package whitelist

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"candilib/pkg/platform/audit"
	"candilib/pkg/testutil"
)

type WhitelistHandlerSuite struct {
	suite.Suite

	store  *InMemoryStore
	router chi.Router
}

func TestWhitelistHandlerSuite(t *testing.T) {
	suite.Run(t, new(WhitelistHandlerSuite))
}

func (s *WhitelistHandlerSuite) SetupTest() {
	s.store = NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(NewService(s.store, audit.NopRecorder()), logger)

	s.router = chi.NewRouter()
	handler.Routes(s.router)
}

func (s *WhitelistHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, testutil.WithAdmin(req, "admin@example.com"))
	return rec
}

func (s *WhitelistHandlerSuite) TestAdd() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/whitelist", map[string]string{
		"email":       "Jean.Dupont@Example.com",
		"departement": "93",
	})
	rec := s.do(req)

	s.Equal(http.StatusCreated, rec.Code)

	ok, err := s.store.Contains(context.Background(), "jean.dupont@example.com")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *WhitelistHandlerSuite) TestAddMissingFields() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/whitelist", map[string]string{
		"email": "jean@example.com",
	})
	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *WhitelistHandlerSuite) TestList() {
	s.Run("requires departement", func() {
		rec := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/whitelist"))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("returns entries for the department", func() {
		add := testutil.NewJSONRequest(s.T(), http.MethodPost, "/whitelist", map[string]string{
			"email":       "jean@example.com",
			"departement": "93",
		})
		s.Require().Equal(http.StatusCreated, s.do(add).Code)

		rec := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/whitelist?departement=93"))
		s.Require().Equal(http.StatusOK, rec.Code)

		var entries []struct {
			Email   string `json:"email"`
			AddedBy string `json:"addedBy"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &entries))
		s.Require().Len(entries, 1)
		s.Equal("jean@example.com", entries[0].Email)
		s.Equal("admin@example.com", entries[0].AddedBy)
	})
}

func (s *WhitelistHandlerSuite) TestRemove() {
	add := testutil.NewJSONRequest(s.T(), http.MethodPost, "/whitelist", map[string]string{
		"email":       "jean@example.com",
		"departement": "93",
	})
	s.Require().Equal(http.StatusCreated, s.do(add).Code)

	rec := s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/whitelist/jean@example.com"))
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodDelete, "/whitelist/jean@example.com"))
	s.Equal(http.StatusNotFound, rec.Code)
}
