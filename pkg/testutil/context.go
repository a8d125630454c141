package testutil

import (
	"net/http"
	"time"

	id "candilib/pkg/domain"
	"candilib/pkg/requestcontext"
)

// WithCandidate adds a candidate ID to the request context, simulating what
// the auth middleware does for authenticated candidate requests.
func WithCandidate(req *http.Request, candidateID id.CandidateID) *http.Request {
	ctx := requestcontext.WithCandidateID(req.Context(), candidateID)
	return req.WithContext(ctx)
}

// WithAdmin adds an admin email to the request context, simulating what the
// auth middleware does for back-office requests.
func WithAdmin(req *http.Request, email string) *http.Request {
	ctx := requestcontext.WithAdminEmail(req.Context(), email)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock, simulating the requesttime
// middleware.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), t)
	return req.WithContext(ctx)
}
