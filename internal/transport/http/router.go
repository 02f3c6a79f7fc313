// Package httptransport is the thin HTTP layer. Handlers parse, delegate to
// the session and audit services, and translate coded errors into statuses;
// business rules never live here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vigil/internal/auth/device"
	"vigil/internal/auth/models"
	"vigil/pkg/domain"
	"vigil/pkg/platform/audit/aggregate"
)

// SessionService is the session manager surface the transport needs.
type SessionService interface {
	Issue(ctx context.Context, username string) (*models.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, userID domain.UserID) (*models.RevokeAllResult, error)
	ValidateAccess(ctx context.Context, accessToken string) (models.Identity, error)
	ListSessions(ctx context.Context, userID domain.UserID, currentToken string) (*models.SessionsResult, error)
}

// RefreshCoordinator deduplicates concurrent refresh calls; the transport
// always refreshes through it, never against the service directly.
type RefreshCoordinator interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

// AuditReader serves derived audit views.
type AuditReader interface {
	Snapshot(ctx context.Context, window time.Duration) (*aggregate.Snapshot, error)
	Suspicious(ctx context.Context, window time.Duration) ([]string, error)
}

// HealthChecker reports backend liveness; nil checkers are skipped.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handler bundles the transport dependencies.
type Handler struct {
	sessions    SessionService
	coordinator RefreshCoordinator
	auditReader AuditReader
	devices     *device.Service
	health      []HealthChecker
	logger      *slog.Logger

	defaultWindow time.Duration
}

// NewHandler constructs the HTTP handler set.
func NewHandler(sessions SessionService, coordinator RefreshCoordinator, auditReader AuditReader, devices *device.Service, logger *slog.Logger, defaultWindow time.Duration, health ...HealthChecker) *Handler {
	return &Handler{
		sessions:      sessions,
		coordinator:   coordinator,
		auditReader:   auditReader,
		devices:       devices,
		health:        health,
		logger:        logger,
		defaultWindow: defaultWindow,
	}
}

// NewRouter wires all endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestContext)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.Post("/logout-all", h.handleLogoutAll)
		r.Get("/userinfo", h.handleUserInfo)
		r.Get("/sessions", h.handleSessions)
	})

	r.Route("/audit", func(r chi.Router) {
		r.Get("/snapshot", h.handleAuditSnapshot)
		r.Get("/suspicious", h.handleAuditSuspicious)
	})

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
