// Package requestmeta extracts per-request metadata (request id, correlation
// id, client IP, user agent) and stores it in the request context. Event
// publishing copies these values into envelope metadata, so this middleware
// should be applied early in the chain.
package requestmeta

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"healthfinance/pkg/requestcontext"
)

const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"
)

// Middleware populates the request context and echoes the request id back to
// the client. A missing request id is generated; a missing correlation id is
// left empty so downstream code never invents one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		if correlationID := r.Header.Get(headerCorrelationID); correlationID != "" {
			ctx = requestcontext.WithCorrelationID(ctx, correlationID)
		}
		ctx = requestcontext.WithClientIP(ctx, ClientIPFromRequest(r))
		ctx = requestcontext.WithUserAgent(ctx, r.Header.Get("User-Agent"))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the real client IP, handling proxies and load
// balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can hold "client, proxy1, proxy2"; the first entry is
	// the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" for IPv4 and "[::1]:port" for IPv6.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return ""
}
