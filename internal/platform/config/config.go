package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "vigil/pkg/platform/strings"
)

// Config captures everything the server needs from the environment so main
// stays lean. Durations accept Go duration syntax (e.g. "15m", "720h").
type Config struct {
	Addr     string
	LogLevel string

	// Token lifecycle.
	SigningKey      string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RefreshTimeout  time.Duration
	// RetentionGrace keeps expired refresh records around for forensics
	// before the janitor hard-deletes them.
	RetentionGrace time.Duration
	PurgeInterval  time.Duration

	// Identity roster for the static resolver; empty means open dev mode.
	Users string
	// DeviceBinding toggles fingerprint derivation and mismatch events.
	DeviceBinding bool

	// Anomaly detection.
	SuspiciousFailureThreshold int
	SuspiciousWindow           time.Duration
	AuditTopN                  int

	// Audit recorder.
	AuditBufferCapacity int
	AuditFlushInterval  time.Duration

	// Backends. Empty URL means the backend is not configured and the
	// in-memory implementation is used (dev mode).
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig holds connection settings for the refresh token store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig holds connection settings for the audit log.
type PostgresConfig struct {
	URL string
}

// KafkaConfig holds settings for the optional Kafka audit sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables with production-safe
// defaults.
func FromEnv() Config {
	return Config{
		Addr:     getEnv("VIGIL_ADDR", ":8080"),
		LogLevel: getEnv("VIGIL_LOG_LEVEL", "info"),

		SigningKey:      getEnv("VIGIL_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AccessTokenTTL:  getDuration("VIGIL_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getDuration("VIGIL_REFRESH_TOKEN_TTL", 30*24*time.Hour),
		RefreshTimeout:  getDuration("VIGIL_REFRESH_TIMEOUT", 5*time.Second),
		RetentionGrace:  getDuration("VIGIL_RETENTION_GRACE", 24*time.Hour),
		PurgeInterval:   getDuration("VIGIL_PURGE_INTERVAL", time.Hour),

		Users:         os.Getenv("VIGIL_USERS"),
		DeviceBinding: getBool("VIGIL_DEVICE_BINDING", true),

		SuspiciousFailureThreshold: getInt("VIGIL_SUSPICIOUS_FAILURE_THRESHOLD", 5),
		SuspiciousWindow:           getDuration("VIGIL_SUSPICIOUS_WINDOW", 10*time.Minute),
		AuditTopN:                  getInt("VIGIL_AUDIT_TOP_N", 10),

		AuditBufferCapacity: getInt("VIGIL_AUDIT_BUFFER_CAPACITY", 10000),
		AuditFlushInterval:  getDuration("VIGIL_AUDIT_FLUSH_INTERVAL", time.Second),

		Redis: RedisConfig{
			URL:          os.Getenv("VIGIL_REDIS_URL"),
			PoolSize:     getInt("VIGIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("VIGIL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("VIGIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("VIGIL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("VIGIL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("VIGIL_POSTGRES_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("VIGIL_KAFKA_BROKERS")),
			Topic:   getEnv("VIGIL_KAFKA_AUDIT_TOPIC", "vigil.audit"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	out := platformstrings.DedupeAndTrim(strings.Split(s, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}
