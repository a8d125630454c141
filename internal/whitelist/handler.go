package whitelist

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"candilib/internal/platform/middleware"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/httputil"
	"candilib/pkg/platform/sentinel"
)

// Handler exposes the admin whitelist endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes attaches the whitelist endpoints to an already-authenticated admin
// router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/whitelist", h.handleList)
	r.Post("/whitelist", h.handleAdd)
	r.Delete("/whitelist/{email}", h.handleRemove)
}

type addRequest struct {
	Email       string `json:"email"`
	Departement string `json:"departement"`
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Requête invalide"))
		return
	}
	if req.Email == "" || req.Departement == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest,
			"Veuillez renseigner les champs suivants : email ou departement"))
		return
	}

	if err := h.service.Add(ctx, req.Email, req.Departement); err != nil {
		if dErrors.Is(err, dErrors.CodeBadRequest) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "whitelist add",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := chi.URLParam(r, "email")

	if err := h.service.Remove(ctx, email); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Adresse email inconnue"))
			return
		}
		h.logger.ErrorContext(ctx, "whitelist remove",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	department := r.URL.Query().Get("departement")
	if department == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest,
			"Veuillez renseigner les champs suivants : departement"))
		return
	}

	entries, err := h.service.List(ctx, department)
	if err != nil {
		h.logger.ErrorContext(ctx, "whitelist list",
			"error", err.Error(),
			"request_id", middleware.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}

	type entryPayload struct {
		Email       string    `json:"email"`
		Departement string    `json:"departement"`
		AddedBy     string    `json:"addedBy"`
		AddedAt     time.Time `json:"addedAt"`
	}
	out := make([]entryPayload, len(entries))
	for i, e := range entries {
		out[i] = entryPayload{Email: e.Email, Departement: e.Department, AddedBy: e.AddedBy, AddedAt: e.AddedAt}
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
