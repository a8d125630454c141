// Package admin composes the back-office HTTP surface. Whitelist and planning
// endpoints share one authenticated router so the middleware chain and the
// admin token check apply uniformly.
package admin

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"candilib/internal/planning"
	"candilib/internal/platform/metrics"
	"candilib/internal/platform/middleware"
	"candilib/internal/whitelist"
	"candilib/pkg/platform/middleware/metadata"
	"candilib/pkg/platform/middleware/requesttime"
)

// Router mounts the admin verticals behind shared auth.
type Router struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
	whitelist *whitelist.Handler
	planning  *planning.Handler
}

func NewRouter(wl *whitelist.Handler, pl *planning.Handler, validator middleware.TokenValidator, logger *slog.Logger, m *metrics.Metrics) *Router {
	return &Router{
		logger:    logger,
		metrics:   m,
		validator: validator,
		whitelist: wl,
		planning:  pl,
	}
}

// Register mounts all admin routes under /api/v2/admin.
func (rt *Router) Register(r chi.Router) {
	admin := chi.NewRouter()
	admin.Use(middleware.Recovery(rt.logger))
	admin.Use(middleware.RequestID)
	admin.Use(middleware.Logger(rt.logger))
	admin.Use(middleware.Timeout(60 * time.Second))
	admin.Use(middleware.ContentTypeJSON)
	admin.Use(middleware.LatencyMiddleware(rt.metrics))
	admin.Use(requesttime.Middleware)
	admin.Use(metadata.ClientMetadata)
	admin.Use(middleware.RequireAdmin(rt.validator, rt.logger))

	rt.whitelist.Routes(admin)
	rt.planning.Routes(admin)

	r.Mount("/api/v2/admin", admin)
}
