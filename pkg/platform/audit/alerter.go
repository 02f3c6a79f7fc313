package audit

import (
	"context"
	"log/slog"
)

// LogAlerter is the default Alerter: it writes alerts to the structured log
// where a SIEM pipeline can pick them up. Deployments with a paging or
// webhook integration replace it at wiring time.
type LogAlerter struct {
	logger *slog.Logger
}

// NewLogAlerter constructs a log-backed alerter.
func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Raise(ctx context.Context, alert SecurityAlert) {
	if a.logger == nil {
		return
	}
	a.logger.ErrorContext(ctx, "security alert",
		"actor", alert.Actor,
		"reason", string(alert.Reason),
		"detail", alert.Detail,
		"log_type", "security_alert",
	)
}
