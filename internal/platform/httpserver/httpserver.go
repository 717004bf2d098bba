// Package httpserver builds the process's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the back office API. Handlers own their request
// deadlines; only slow-client protections are set here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
