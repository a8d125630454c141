package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Per-route deadlines come from the timeout
// middleware, so only the header read gets a server-level limit; write and
// idle timeouts stay generous for slow clients on mobile networks.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
