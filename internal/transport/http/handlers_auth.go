package httptransport

import (
	"encoding/json"
	"net/http"

	"vigil/internal/auth/models"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/httputil"
	"vigil/pkg/requestcontext"
)

type loginRequest struct {
	Username string `json:"username"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	pair, err := h.sessions.Issue(r.Context(), req.Username)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	pair, err := h.coordinator.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.sessions.Revoke(r.Context(), req.RefreshToken); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, r, err := h.authenticate(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.sessions.RevokeAll(r.Context(), identity.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	identity, r, err := h.authenticate(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"sub":      identity.ID.String(),
		"username": identity.Username,
		"roles":    identity.Roles,
	})
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	identity, r, err := h.authenticate(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The caller may identify its own chain so the listing can flag it.
	current := r.Header.Get("X-Refresh-Token")
	result, err := h.sessions.ListSessions(r.Context(), identity.ID, current)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// authenticate validates the bearer token and returns the request with the
// caller's username stamped into its context for downstream audit records.
func (h *Handler) authenticate(r *http.Request) (models.Identity, *http.Request, error) {
	tok := bearerToken(r)
	if tok == "" {
		return models.Identity{}, r, dErrors.New(dErrors.CodeUnauthorized, "bearer token required")
	}
	identity, err := h.sessions.ValidateAccess(r.Context(), tok)
	if err != nil {
		return models.Identity{}, r, err
	}
	return identity, r.WithContext(requestcontext.WithUsername(r.Context(), identity.Username)), nil
}
