// Package requestcontext provides transport-independent accessors for
// values scoped to a single unit of work: one HTTP request or one inbound
// verification fact.
//
// Usage in services (read values):
//
//	identityID := requestcontext.IdentityID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	identityIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	callerKey      struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyIdentityID  = identityIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyCaller      = callerKey{}
)

// IdentityID retrieves the correlation id of the fact being processed.
func IdentityID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyIdentityID).(string); ok {
		return v
	}
	return ""
}

// WithIdentityID injects the correlation id of the fact being processed.
func WithIdentityID(ctx context.Context, identityID string) context.Context {
	return context.WithValue(ctx, ContextKeyIdentityID, identityID)
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

// Caller retrieves the authenticated caller (token subject) from the context.
func Caller(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyCaller).(string); ok {
		return v
	}
	return ""
}

// WithCaller injects the authenticated caller into the context.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// Now retrieves the unit-of-work time from context.
// Falls back to time.Now() if not set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that need a deterministic clock
//   - The intake consumer, which pins one time per fact
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
