package httptransport

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"vigil/internal/auth/device"
	"vigil/pkg/requestcontext"
)

// requestContext copies transport facts (request id, client ip, user agent,
// device identity) into the request context so the services below never
// touch *http.Request.
func (h *Handler) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		if ip := clientIP(r); ip != "" {
			ctx = requestcontext.WithClientIP(ctx, ip)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = requestcontext.WithUserAgent(ctx, ua)
			ctx = requestcontext.WithDeviceName(ctx, device.ParseUserAgent(ua))
			if fp := h.devices.ComputeFingerprint(ua); fp != "" {
				ctx = requestcontext.WithDeviceFingerprint(ctx, fp)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP trusts chi's RealIP middleware to have already folded proxy
// headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// bearerToken extracts the Authorization bearer token, or "".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
