// Command server wires the session core, audit platform, and HTTP transport
// together. Business logic lives in the internal packages; main only builds
// the dependency graph and owns the process lifecycle.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vigil/internal/auth/coordinator"
	"vigil/internal/auth/device"
	"vigil/internal/auth/identity"
	"vigil/internal/auth/service"
	"vigil/internal/auth/store/refresh"
	"vigil/internal/auth/token"
	"vigil/internal/platform/config"
	"vigil/internal/platform/httpserver"
	"vigil/internal/platform/logger"
	"vigil/internal/platform/metrics"
	"vigil/internal/platform/postgres"
	redisplatform "vigil/internal/platform/redis"
	httptransport "vigil/internal/transport/http"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/audit/aggregate"
	"vigil/pkg/platform/audit/recorder"
	auditkafka "vigil/pkg/platform/audit/store/kafka"
	auditmem "vigil/pkg/platform/audit/store/memory"
	auditpg "vigil/pkg/platform/audit/store/postgres"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	// Refresh token store: Redis when configured, then Postgres, then
	// in-memory for dev.
	var refreshStore refresh.Store = refresh.NewInMemoryStore()
	switch {
	case redisClient != nil:
		refreshStore = refresh.NewRedisStore(redisClient, cfg.RetentionGrace)
		log.Info("refresh token store: redis")
	case pool != nil:
		refreshStore = refresh.NewPostgresStore(pool)
		log.Info("refresh token store: postgres")
	default:
		log.Warn("refresh token store: in-memory, sessions do not survive restarts")
	}

	// Audit log: Postgres when configured, otherwise in-memory. Kafka is an
	// additional fan-out sink; the aggregator always reads the primary log.
	var auditLog audit.Log = auditmem.NewInMemoryStore()
	if pool != nil {
		auditLog = auditpg.New(pool)
		log.Info("audit log: postgres")
	} else {
		log.Warn("audit log: in-memory, records do not survive restarts")
	}

	sinks := audit.MultiSink{auditLog}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		log.Info("audit fan-out: kafka", "topic", cfg.Kafka.Topic)
	}

	rec := recorder.New(sinks, cfg.AuditBufferCapacity,
		recorder.WithLogger(log),
		recorder.WithFlushInterval(cfg.AuditFlushInterval),
	)
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		_ = rec.Run(ctx)
	}()

	alerter := audit.NewLogAlerter(log)
	aggregator := aggregate.New(auditLog, cfg.AuditTopN, cfg.SuspiciousFailureThreshold,
		aggregate.WithAlerter(alerter),
	)

	devices := device.NewService(cfg.DeviceBinding)
	sessions := service.New(
		identity.NewStaticResolver(cfg.Users),
		refreshStore,
		token.NewCodec(cfg.SigningKey, cfg.AccessTokenTTL),
		devices,
		service.WithRecorder(rec),
		service.WithAlerter(alerter),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithRefreshTTL(cfg.RefreshTokenTTL),
		service.WithRetentionGrace(cfg.RetentionGrace),
	)
	coord := coordinator.New(sessions,
		coordinator.WithTimeout(cfg.RefreshTimeout),
		coordinator.WithMetrics(m),
		coordinator.WithLogger(log),
	)

	go maintenanceLoop(ctx, cfg, log, m, sessions, aggregator)

	var health []httptransport.HealthChecker
	if redisClient != nil {
		health = append(health, redisClient)
	}
	if pool != nil {
		health = append(health, poolHealth{pool})
	}

	handler := httptransport.NewHandler(sessions, coord, aggregator, devices, log, cfg.SuspiciousWindow, health...)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Run drains accepted audit records before it returns.
	<-recorderDone
	return nil
}

// maintenanceLoop runs the expired-token janitor and refreshes the
// suspicious-actor gauge on the purge cadence.
func maintenanceLoop(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics, sessions *service.Service, aggregator *aggregate.Aggregator) {
	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := sessions.PurgeExpired(ctx); err != nil {
			log.ErrorContext(ctx, "expired token purge failed", "error", err)
		}
		actors, err := aggregator.Suspicious(ctx, cfg.SuspiciousWindow)
		if err != nil {
			log.ErrorContext(ctx, "suspicious actor sweep failed", "error", err)
			continue
		}
		m.SuspiciousActors.Set(float64(len(actors)))
	}
}

// poolHealth adapts pgxpool's Ping to the transport's HealthChecker.
type poolHealth struct {
	pool *pgxpool.Pool
}

func (p poolHealth) Health(ctx context.Context) error { return p.pool.Ping(ctx) }
