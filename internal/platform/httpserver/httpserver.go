// Package httpserver constructs the process HTTP server with timeouts that
// keep slow clients from pinning goroutines.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an *http.Server ready for ListenAndServe. Handler timeouts are
// owned by the middleware stack, so only connection-level limits live here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
