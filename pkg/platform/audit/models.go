// Package audit defines the append-only audit record model, the sink and log
// contracts, and the outbound security alert signal.
//
// Records are immutable once written. Aggregation is always recomputed from
// the log rather than maintained as separate state, so statistics can never
// drift from the records that back them.
package audit

import (
	"context"
	"time"
)

// Outcome is the result of an audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Severity levels for security-relevant records, for SIEM routing.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// EventCategory classifies audit records by their primary purpose. This
// drives routing (e.g. Kafka message keys) and retention policy downstream.
type EventCategory string

const (
	// CategorySecurity covers records relevant to security monitoring and
	// forensics: auth failures, revocations, token reuse.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging and
	// operational visibility: token issuance, refreshes, session listings.
	CategoryOperations EventCategory = "operations"
)

// Record is one immutable audit entry: who did what, to which resource,
// when, with what outcome.
type Record struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Outcome      Outcome   `json:"outcome"`
	Detail       string    `json:"detail,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	SourceIP     string    `json:"source_ip,omitempty"`
	Severity     Severity  `json:"severity,omitempty"`
}

// Audited actions.
const (
	ActionLogin          = "login"
	ActionTokenRefreshed = "token_refreshed"
	ActionTokenValidated = "token_validated"
	ActionTokenReuse     = "token_reuse_detected"
	ActionDeviceMismatch = "device_mismatch"
	ActionSessionRevoked = "session_revoked"
	ActionLogoutAll      = "logout_all"
	ActionSessionsListed = "sessions_listed"
)

// actionCategories maps each audited action to its category. Unknown actions
// default to operations.
var actionCategories = map[string]EventCategory{
	ActionLogin:          CategoryOperations,
	ActionTokenRefreshed: CategoryOperations,
	ActionTokenValidated: CategoryOperations,
	ActionSessionsListed: CategoryOperations,

	ActionTokenReuse:     CategorySecurity,
	ActionDeviceMismatch: CategorySecurity,
	ActionSessionRevoked: CategorySecurity,
	ActionLogoutAll:      CategorySecurity,
}

// CategoryOf returns the category for an audited action.
func CategoryOf(action string) EventCategory {
	if cat, ok := actionCategories[action]; ok {
		return cat
	}
	return CategoryOperations
}

// Sink accepts audit records for durable storage. Implementations must treat
// each append as atomic; they are never asked to batch across records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Log is a sink that can also be read back for aggregation. Implementations
// return records in append order.
type Log interface {
	Sink
	// ListSince returns records with Timestamp >= since, oldest first.
	// A zero since returns the full log.
	ListSince(ctx context.Context, since time.Time) ([]Record, error)
}

// AlertReason classifies an outbound security alert.
type AlertReason string

const (
	ReasonTokenReuse        AlertReason = "TOKEN_REUSE"
	ReasonThresholdExceeded AlertReason = "THRESHOLD_EXCEEDED"
)

// SecurityAlert is the signal the core raises for the surrounding system to
// act on (paging, forced re-auth flows, SIEM escalation).
type SecurityAlert struct {
	Actor  string      `json:"actor"`
	Reason AlertReason `json:"reason"`
	Detail string      `json:"detail,omitempty"`
}

// Alerter consumes outbound security alerts. Raising an alert must never
// fail the operation that triggered it.
type Alerter interface {
	Raise(ctx context.Context, alert SecurityAlert)
}
