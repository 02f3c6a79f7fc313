package testutil

import (
	"context"
	"time"

	"vigil/pkg/requestcontext"
)

// ContextAt returns a context whose clock is frozen at the given instant.
// Services read time through the request context, so tests steer expiry and
// windows this way instead of sleeping.
func ContextAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

// RequestContext builds a context carrying the request-scoped facts the HTTP
// middleware would inject, for driving services without a transport.
func RequestContext(now time.Time, userAgent, clientIP string) context.Context {
	ctx := ContextAt(now)
	if userAgent != "" {
		ctx = requestcontext.WithUserAgent(ctx, userAgent)
	}
	if clientIP != "" {
		ctx = requestcontext.WithClientIP(ctx, clientIP)
	}
	return ctx
}
