// Package handler is the candidate-facing HTTP layer. It translates requests
// into orchestrator calls and folds business rejections into 200 responses
// with success=false, keeping eligibility outcomes out of the error space.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"candilib/internal/booking/models"
	"candilib/internal/booking/rules"
	"candilib/internal/booking/service"
	"candilib/internal/platform/metrics"
	"candilib/internal/platform/middleware"
	id "candilib/pkg/domain"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/httputil"
	"candilib/pkg/platform/middleware/metadata"
	"candilib/pkg/platform/middleware/requesttime"
	"candilib/pkg/requestcontext"
)

// Service is the orchestrator surface the handler consumes.
type Service interface {
	GetReservation(ctx context.Context, candidateID id.CandidateID) (*models.Reservation, error)
	ListAvailableSlots(ctx context.Context, candidateID id.CandidateID, centreID id.CentreID, reqBegin, reqEnd *time.Time) ([]time.Time, error)
	Book(ctx context.Context, candidateID id.CandidateID, centreID id.CentreID, requestedAt time.Time) (*service.BookResult, error)
	Cancel(ctx context.Context, candidateID id.CandidateID) (*service.CancelResult, error)
}

// Handler handles the candidate reservation endpoints.
type Handler struct {
	logger    *slog.Logger
	booking   Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates the reservation Handler.
func New(booking Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		booking:   booking,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the candidate routes.
func (h *Handler) Register(r chi.Router) {
	candidat := chi.NewRouter()
	candidat.Use(middleware.Recovery(h.logger))
	candidat.Use(middleware.RequestID)
	candidat.Use(middleware.Logger(h.logger))
	candidat.Use(middleware.Timeout(30 * time.Second))
	candidat.Use(middleware.ContentTypeJSON)
	candidat.Use(middleware.LatencyMiddleware(h.metrics))
	candidat.Use(requesttime.Middleware)
	candidat.Use(metadata.ClientMetadata)
	candidat.Use(middleware.RequireCandidate(h.validator, h.logger))
	candidat.Get("/places", h.handleGetReservation)
	candidat.Post("/places", h.handleBook)
	candidat.Delete("/places", h.handleCancel)
	candidat.Get("/centres/{centreID}/places", h.handleListPlaces)

	r.Mount("/api/v2/candidat", candidat)
}

type centrePayload struct {
	ID          string `json:"id"`
	Nom         string `json:"nom"`
	Departement string `json:"departement"`
	Adresse     string `json:"adresse"`
}

type reservationPayload struct {
	Date        string        `json:"date"`
	Centre      centrePayload `json:"centre"`
	Departement string        `json:"departement"`
}

func toReservationPayload(res models.Reservation) reservationPayload {
	return reservationPayload{
		Date: res.Place.At.Format(time.RFC3339),
		Centre: centrePayload{
			ID:          res.Centre.ID.String(),
			Nom:         res.Centre.Name,
			Departement: res.Centre.Department,
			Adresse:     res.Centre.Address,
		},
		Departement: res.Department,
	}
}

func (h *Handler) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, ctx)
	if !ok {
		return
	}

	res, err := h.booking.GetReservation(ctx, candidateID)
	if err != nil {
		h.serveError(w, ctx, "get reservation", err)
		return
	}
	if res == nil {
		httputil.WriteJSON(w, http.StatusOK, struct{}{})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toReservationPayload(*res))
}

type bookRequest struct {
	Centre            *string `json:"centre"`
	Date              *string `json:"date"`
	IsAccompanied     *bool   `json:"isAccompanied"`
	HasDualControlCar *bool   `json:"hasDualControlCar"`
}

type bookResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	StatusMail  bool                `json:"statusmail"`
	Reservation *reservationPayload `json:"reservation,omitempty"`
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, ctx)
	if !ok {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Requête invalide"))
		return
	}

	if missing := missingFields(req); len(missing) > 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest,
			"Veuillez renseigner les champs suivants : "+joinFrench(missing)))
		return
	}

	centreID, err := id.ParseCentreID(*req.Centre)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Centre d'examen invalide"))
		return
	}
	requestedAt, err := time.Parse(time.RFC3339, *req.Date)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Le format de la date est invalide"))
		return
	}

	result, err := h.booking.Book(ctx, candidateID, centreID, requestedAt)
	if err != nil {
		h.serveError(w, ctx, "book place", err)
		return
	}

	if result.Rejection != nil {
		httputil.WriteJSON(w, http.StatusOK, bookResponse{
			Success:    false,
			Message:    result.Rejection.Message,
			StatusMail: true,
		})
		return
	}

	payload := toReservationPayload(*result.Reservation)
	httputil.WriteJSON(w, http.StatusCreated, bookResponse{
		Success:     true,
		Message:     result.Message,
		StatusMail:  result.StatusMail,
		Reservation: &payload,
	})
}

type cancelResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	StatusMail    bool   `json:"statusmail"`
	DateAfterBook string `json:"dateAfterBook,omitempty"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, ctx)
	if !ok {
		return
	}

	result, err := h.booking.Cancel(ctx, candidateID)
	if err != nil {
		h.serveError(w, ctx, "cancel reservation", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, cancelResponse{
		Success:       true,
		Message:       result.Message,
		StatusMail:    result.StatusMail,
		DateAfterBook: result.PenaltyDate(),
	})
}

func (h *Handler) handleListPlaces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, ctx)
	if !ok {
		return
	}

	centreID, err := id.ParseCentreID(chi.URLParam(r, "centreID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Centre d'examen invalide"))
		return
	}

	// Unparseable bounds fall back to the computed defaults.
	begin := parseDateParam(r.URL.Query().Get("begin"))
	end := parseDateParam(r.URL.Query().Get("end"))

	dates, err := h.booking.ListAvailableSlots(ctx, candidateID, centreID, begin, end)
	if err != nil {
		switch {
		case errors.Is(err, rules.ErrETGExpired):
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden,
				"Votre code de la route n'est plus valide."))
		case errors.Is(err, rules.ErrETGMissing):
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden,
				"Vous devez avoir réussi l'épreuve théorique pour réserver une place."))
		default:
			h.serveError(w, ctx, "list places", err)
		}
		return
	}

	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(time.RFC3339)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// candidateID pulls the authenticated candidate from context. The auth
// middleware guarantees it; a zero value here is a wiring bug.
func (h *Handler) candidateID(w http.ResponseWriter, ctx context.Context) (id.CandidateID, bool) {
	candidateID := requestcontext.CandidateID(ctx)
	if candidateID.IsNil() {
		h.logger.ErrorContext(ctx, "candidate missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.CandidateID{}, false
	}
	return candidateID, true
}

func (h *Handler) serveError(w http.ResponseWriter, ctx context.Context, op string, err error) {
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal {
		h.logger.WarnContext(ctx, op,
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, op,
		"error", err.Error(),
		"request_id", middleware.GetRequestID(ctx),
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
}

func missingFields(req bookRequest) []string {
	var missing []string
	if req.Centre == nil || *req.Centre == "" {
		missing = append(missing, "centre")
	}
	if req.Date == nil || *req.Date == "" {
		missing = append(missing, "date")
	}
	if req.IsAccompanied == nil {
		missing = append(missing, "isAccompanied")
	}
	if req.HasDualControlCar == nil {
		missing = append(missing, "hasDualControlCar")
	}
	return missing
}

// joinFrench renders ["a","b","c"] as "a, b ou c".
func joinFrench(fields []string) string {
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return fields[0]
	default:
		return strings.Join(fields[:len(fields)-1], ", ") + " ou " + fields[len(fields)-1]
	}
}

func parseDateParam(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t
	}
	return nil
}
