// Package coordinator deduplicates concurrent refresh attempts so a burst
// of requests from one device spends a single rotation.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"vigil/internal/auth/models"
	"vigil/internal/platform/metrics"
	dErrors "vigil/pkg/domain-errors"
)

// Refresher performs the actual token rotation.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

const defaultTimeout = 5 * time.Second

// Coordinator single-flights refresh calls. The flight key is the presented
// token value: one user+device chain holds exactly one active token, so
// keying by token is keying by device, and unrelated sessions never contend.
//
// Every caller that joins an in-flight rotation receives the winner's pair;
// without this, the losers would present an already-rotated token and read
// as thieves.
type Coordinator struct {
	refresher Refresher
	group     singleflight.Group
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

// WithTimeout bounds how long callers wait on a rotation.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithMetrics attaches coordinator metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New constructs a coordinator around a refresher.
func New(refresher Refresher, opts ...Option) *Coordinator {
	c := &Coordinator{
		refresher: refresher,
		timeout:   defaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh joins or starts the rotation for the presented token. It returns
// the rotation's pair, or a timeout error once the bound elapses; on timeout
// the in-flight marker is cleared so later callers start fresh instead of
// piling onto a wedged flight.
func (c *Coordinator) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "refresh token required")
	}

	ch := c.group.DoChan(refreshToken, func() (any, error) {
		// The rotation outlives the caller that started it: waiters that
		// joined later still need the result, so it runs on a detached
		// context bounded only by the refresh timeout.
		inner, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refresher.Refresh(inner, refreshToken)
	})

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Shared && c.metrics != nil {
			c.metrics.CoordinatorShared.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.TokenPair), nil

	case <-ctx.Done():
		c.group.Forget(refreshToken)
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "refresh abandoned")

	case <-timer.C:
		c.group.Forget(refreshToken)
		if c.metrics != nil {
			c.metrics.CoordinatorTimeout.Inc()
		}
		c.logger.WarnContext(ctx, "refresh rotation exceeded timeout, flight cleared")
		return nil, dErrors.New(dErrors.CodeTimeout, "refresh timed out")
	}
}
