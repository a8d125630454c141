package planning

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"candilib/internal/platform/middleware"
	id "candilib/pkg/domain"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/httputil"
)

// Handler exposes the admin planning endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes attaches the planning endpoints to an already-authenticated admin
// router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/places", h.handleImport)
	r.Delete("/places", h.handleDeleteDay)
}

// handleImport ingests a semicolon-separated planning CSV posted as the
// request body.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.service.ImportCSV(ctx, r.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "planning import",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Le fichier de planning est invalide"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"created": report.Created,
		"errors":  report.Errors,
	})
}

func (h *Handler) handleDeleteDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	centreID, err := id.ParseCentreID(r.URL.Query().Get("centre"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Centre d'examen invalide"))
		return
	}
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("date"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Le format de la date est invalide"))
		return
	}

	deleted, err := h.service.DeleteUnassignedDay(ctx, centreID, at)
	if err != nil {
		h.logger.ErrorContext(ctx, "planning delete",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deleted": deleted,
	})
}
