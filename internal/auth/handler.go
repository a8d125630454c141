package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"candilib/internal/platform/metrics"
	"candilib/internal/platform/middleware"
	dErrors "candilib/pkg/domain-errors"
	"candilib/pkg/platform/httputil"
	"candilib/pkg/platform/middleware/metadata"
	"candilib/pkg/platform/middleware/requesttime"
)

// Handler exposes the unauthenticated login endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	metrics *metrics.Metrics
}

func NewHandler(service *Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: m}
}

// Register mounts the auth routes. These are the only routes without a token
// requirement.
func (h *Handler) Register(r chi.Router) {
	authRouter := chi.NewRouter()
	authRouter.Use(middleware.Recovery(h.logger))
	authRouter.Use(middleware.RequestID)
	authRouter.Use(middleware.Logger(h.logger))
	authRouter.Use(middleware.Timeout(10 * time.Second))
	authRouter.Use(middleware.ContentTypeJSON)
	authRouter.Use(middleware.LatencyMiddleware(h.metrics))
	authRouter.Use(requesttime.Middleware)
	authRouter.Use(metadata.ClientMetadata)
	authRouter.Post("/candidat/magic-link", h.handleMagicLink)
	authRouter.Post("/admin/token", h.handleAdminLogin)

	r.Mount("/api/v2/auth", authRouter)
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

func (h *Handler) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req magicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest,
			"Veuillez renseigner les champs suivants : email"))
		return
	}

	if err := h.service.SendMagicLink(ctx, req.Email); err != nil {
		code := dErrors.CodeOf(err)
		if code == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "send magic link",
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Un lien de connexion vous a été envoyé par email.",
	})
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest,
			"Veuillez renseigner les champs suivants : email ou password"))
		return
	}

	token, err := h.service.AdminLogin(ctx, req.Email, req.Password)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "admin login",
				"error", err.Error(),
				"request_id", middleware.GetRequestID(ctx),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}
