// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and the event publisher read them.
// Keeping this package free of net/http dependencies means domain code can
// consume request metadata without pulling in transport concerns.
package requestcontext

import "context"

type (
	requestIDKey     struct{}
	correlationIDKey struct{}
	userIDKey        struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
)

// WithRequestID stores the request ID for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithCorrelationID stores the cross-service correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the correlation ID or "".
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey{}).(string)
	return v
}

// WithUserID stores the acting user's ID.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID returns the acting user's ID or "".
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey{}).(string)
	return v
}

// WithClientIP stores the originating client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the client IP or "".
func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

// WithUserAgent stores the client user agent.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// UserAgent returns the user agent or "".
func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(userAgentKey{}).(string)
	return v
}
