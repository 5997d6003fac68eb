// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware and CLI commands set the values; services read them without
// importing net/http.
//
//	ctx = requestcontext.WithActor(ctx, userID, role)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
//	actorID, role := requestcontext.Actor(ctx)
//	requestID := requestcontext.RequestID(ctx)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey     struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// Actor retrieves the authenticated actor id and role claim.
// Both are empty when the request is anonymous.
func Actor(ctx context.Context) (id, role string) {
	id, _ = ctx.Value(ContextKeyActorID).(string)
	role, _ = ctx.Value(ContextKeyRole).(string)
	return id, role
}

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, id, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActorID, id)
	return context.WithValue(ctx, ContextKeyRole, role)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like the CLI and tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
