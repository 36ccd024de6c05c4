package api

import (
	"errors"
	"net/http"

	"github.com/quillrook/songsmith/internal/api/middleware"
	"github.com/quillrook/songsmith/internal/profile"
)

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	p, err := r.profileService.Load(req.Context(), userID)
	if err != nil {
		r.logger.Error("failed to load profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleSetCredential(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var body struct {
		APIKey string `json:"api_key"` //nolint:gosec // G117: not a hardcoded secret, this is a request field
	}
	if !readJSON(w, req, &body) {
		return
	}

	err := r.profileService.SetCredential(req.Context(), userID, body.APIKey)
	if errors.Is(err, profile.ErrEmptyCredential) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		r.logger.Error("failed to store credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleClearCredential(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	if err := r.profileService.ClearCredential(req.Context(), userID); err != nil {
		r.logger.Error("failed to clear credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
