package httptransport

import (
	"context"
	"net/http"
	"time"

	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
)

func (h *Handler) handleAuditSnapshot(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snap, err := h.auditReader.Snapshot(r.Context(), window)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleAuditSuspicious(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	actors, err := h.auditReader.Suspicious(r.Context(), window)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"window": window.String(),
		"actors": actors,
	})
}

// window parses the ?window= query parameter, falling back to the
// configured default.
func (h *Handler) window(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return h.defaultWindow, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil || window < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid window duration")
	}
	return window, nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, checker := range h.health {
		if checker == nil {
			continue
		}
		if err := checker.Health(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
