package api

import (
	"errors"
	"net/http"

	"github.com/quillrook/songsmith/internal/api/middleware"
	"github.com/quillrook/songsmith/internal/auth"
)

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"` //nolint:gosec // G117: not a hardcoded secret, this is a request field
		DisplayName string `json:"display_name"`
	}
	if !readJSON(w, req, &body) {
		return
	}

	userID, err := r.authService.SignUp(req.Context(), body.Email, body.Password, body.DisplayName)
	switch {
	case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrNameTaken):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := r.authService.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		r.logger.Error("post-signup login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	r.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"` //nolint:gosec // G117: not a hardcoded secret, this is a request field
	}
	if !readJSON(w, req, &body) {
		return
	}

	token, err := r.authService.Login(req.Context(), body.Identifier, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	r.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if cookie, err := req.Cookie("session"); err == nil {
		if logoutErr := r.authService.Logout(req.Context(), cookie.Value); logoutErr != nil {
			r.logger.Warn("failed to delete session", "error", logoutErr)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())
	user, err := r.authService.GetUser(req.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (r *Router) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.secureCookies,
		MaxAge:   86400,
	})
}
