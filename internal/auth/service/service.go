// Package service implements the session manager: credential issuance,
// refresh rotation with theft response, revocation, and access validation.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/auth/device"
	"vigil/internal/auth/models"
	"vigil/internal/auth/store/refresh"
	"vigil/internal/auth/token"
	"vigil/internal/platform/metrics"
	"vigil/pkg/platform/audit"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks

// IdentityResolver authenticates a username against the external identity
// store and returns its identity snapshot. The session core never stores or
// inspects credentials beyond this call.
type IdentityResolver interface {
	Resolve(ctx context.Context, username string) (models.Identity, error)
}

// Recorder accepts audit records. It never blocks and never fails; sink
// trouble is absorbed behind it.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record)
}

const defaultRefreshTTL = 30 * 24 * time.Hour

// Service orchestrates the token lifecycle over a refresh store and codec.
type Service struct {
	resolver IdentityResolver
	store    refresh.Store
	codec    *token.Codec
	devices  *device.Service

	recorder Recorder
	alerter  audit.Alerter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer

	refreshTTL     time.Duration
	retentionGrace time.Duration
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithRecorder attaches the audit recorder.
func WithRecorder(rec Recorder) Option {
	return func(s *Service) { s.recorder = rec }
}

// WithAlerter attaches the security alerter.
func WithAlerter(alerter audit.Alerter) Option {
	return func(s *Service) { s.alerter = alerter }
}

// WithMetrics attaches service metrics. Without it the service runs
// unmetered, which tests rely on to avoid collector re-registration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) { s.refreshTTL = ttl }
}

// WithRetentionGrace sets how long expired records are retained before
// PurgeExpired deletes them.
func WithRetentionGrace(grace time.Duration) Option {
	return func(s *Service) { s.retentionGrace = grace }
}

// New constructs the session service.
func New(resolver IdentityResolver, store refresh.Store, codec *token.Codec, devices *device.Service, opts ...Option) *Service {
	s := &Service{
		resolver:   resolver,
		store:      store,
		codec:      codec,
		devices:    devices,
		logger:     slog.Default(),
		tracer:     otel.Tracer("vigil/internal/auth/service"),
		refreshTTL: defaultRefreshTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(ctx context.Context, rec audit.Record) {
	if s.recorder != nil {
		s.recorder.Record(ctx, rec)
	}
}

func (s *Service) raise(ctx context.Context, alert audit.SecurityAlert) {
	if s.alerter != nil {
		s.alerter.Raise(ctx, alert)
	}
}

func (s *Service) countRefreshFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RefreshFailures.WithLabelValues(reason).Inc()
	}
}
