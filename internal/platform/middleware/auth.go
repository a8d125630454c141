package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "candilib/pkg/domain"
	"candilib/pkg/requestcontext"
)

// TokenValidator is the slice of the JWT service the middleware needs.
type TokenValidator interface {
	ExtractCandidateID(tokenString string) (id.CandidateID, error)
	ExtractAdminEmail(tokenString string) (string, error)
}

const bearerPrefix = "Bearer "

// RequireCandidate rejects requests without a valid candidate token and puts
// the candidate ID in the request context.
func RequireCandidate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				unauthorized(w, r, logger, "missing token")
				return
			}
			candidateID, err := validator.ExtractCandidateID(token)
			if err != nil {
				unauthorized(w, r, logger, "invalid candidate token")
				return
			}
			ctx := requestcontext.WithCandidateID(r.Context(), candidateID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests without a valid admin token and puts the
// admin email in the request context.
func RequireAdmin(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok {
				unauthorized(w, r, logger, "missing token")
				return
			}
			email, err := validator.ExtractAdminEmail(token)
			if err != nil {
				unauthorized(w, r, logger, "invalid admin token")
				return
			}
			ctx := requestcontext.WithAdminEmail(r.Context(), email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, why string) {
	ctx := r.Context()
	logger.WarnContext(ctx, "unauthorized access",
		"reason", why,
		"path", r.URL.Path,
		"request_id", GetRequestID(ctx),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, err := w.Write([]byte(`{"auth":false,"message":"Vous n'êtes pas connecté"}`))
	if err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(ctx),
		)
	}
}
