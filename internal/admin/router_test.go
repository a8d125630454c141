package admin_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"candilib/internal/admin"
	"candilib/internal/booking/store/centre"
	"candilib/internal/booking/store/place"
	"candilib/internal/civiltime"
	"candilib/internal/jwtauth"
	"candilib/internal/planning"
	"candilib/internal/platform/metrics"
	"candilib/internal/whitelist"
	id "candilib/pkg/domain"
	"candilib/pkg/platform/audit"
	"candilib/pkg/testutil"
)

const planningBody = `date;heure;inspecteur;centre;departement
10/06/24;09:00;I001;Bobigny;93
10/06/24;10:30;I001;Bobigny;93
`

func newAdminRouter(t *testing.T, tokens *jwtauth.Service) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())
	cal := civiltime.MustCalendar("Europe/Paris")

	wl := whitelist.NewHandler(
		whitelist.NewService(whitelist.NewMemory(), audit.NopRecorder()), logger)
	pl := planning.NewHandler(
		planning.NewService(place.NewMemory(), centre.NewMemory(), cal,
			audit.NopRecorder(), m), logger)

	r := chi.NewRouter()
	admin.NewRouter(wl, pl, tokens, logger, m).Register(r)
	return r
}

func TestAdminRouterAuth(t *testing.T) {
	tokens := jwtauth.NewService("test-key", "candilib", "candilib-api")

	testutil.Given(t, "the admin router", func(t *testing.T) {
		router := newAdminRouter(t, tokens)

		testutil.When(t, "calling without a token", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v2/admin/whitelist?departement=93", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should reject the request", func(t *testing.T) {
				require.Equal(t, http.StatusUnauthorized, rec.Code)
				require.JSONEq(t, `{"auth":false,"message":"Vous n'êtes pas connecté"}`, rec.Body.String())
			})
		})

		testutil.When(t, "calling with a candidate token", func(t *testing.T) {
			token, err := tokens.GenerateCandidateToken(id.NewCandidateID(), time.Hour)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/v2/admin/whitelist?departement=93", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should reject the request", func(t *testing.T) {
				require.Equal(t, http.StatusUnauthorized, rec.Code)
			})
		})

		testutil.When(t, "importing a planning with an admin token", func(t *testing.T) {
			token, err := tokens.GenerateAdminToken("admin@example.com", time.Hour)
			require.NoError(t, err)

			req := testutil.NewRequestWithBody(t, http.MethodPost, "/api/v2/admin/places", planningBody)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should create the places", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rec.Code)

				var resp struct {
					Success bool     `json:"success"`
					Created int      `json:"created"`
					Errors  []string `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				require.True(t, resp.Success)
				require.Equal(t, 2, resp.Created)
				require.Empty(t, resp.Errors)
			})
		})
	})
}
