// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by transport middleware and consumed by services. Keeping
// this package free of net/http lets services import only what they need.
//
// The request time accessor doubles as the module's clock: middleware stamps
// the arrival time, services read it with Now, and tests inject a fixed time
// with WithTime. Code under internal/ never calls time.Now directly for
// expiry or windowing decisions.
package requestcontext

import (
	"context"
	"time"

	id "vigil/pkg/domain"
)

type (
	userIDKey            struct{}
	usernameKey          struct{}
	deviceFingerprintKey struct{}
	deviceNameKey        struct{}
	clientIPKey          struct{}
	userAgentKey         struct{}
	requestIDKey         struct{}
	requestTimeKey       struct{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the zero value if not set.
func UserID(ctx context.Context) id.UserID {
	if v, ok := ctx.Value(userIDKey{}).(id.UserID); ok {
		return v
	}
	return id.UserID{}
}

// WithUserID injects an authenticated user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// Username retrieves the authenticated username from the context.
func Username(ctx context.Context) string {
	if v, ok := ctx.Value(usernameKey{}).(string); ok {
		return v
	}
	return ""
}

// WithUsername injects the authenticated username into the context.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey{}, username)
}

// DeviceFingerprint retrieves the device fingerprint hash from the context.
func DeviceFingerprint(ctx context.Context) string {
	if v, ok := ctx.Value(deviceFingerprintKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDeviceFingerprint injects a device fingerprint hash into the context.
func WithDeviceFingerprint(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, deviceFingerprintKey{}, fp)
}

// DeviceName retrieves the human-readable device name from the context.
func DeviceName(ctx context.Context) string {
	if v, ok := ctx.Value(deviceNameKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDeviceName injects a human-readable device name into the context.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, deviceNameKey{}, name)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientIP injects the client IP address into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// UserAgent retrieves the raw User-Agent header from the context.
func UserAgent(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentKey{}).(string); ok {
		return v
	}
	return ""
}

// WithUserAgent injects the raw User-Agent header into the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the request arrival time when one was stamped, falling back to
// the wall clock. All expiry and windowing decisions go through this.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithTime injects a request time into the context. Middleware stamps the
// arrival time; tests use this to freeze the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
