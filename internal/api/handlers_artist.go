package api

import (
	"errors"
	"net/http"

	"github.com/quillrook/songsmith/internal/api/middleware"
	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/transfer"
)

type artistBody struct {
	Name  string `json:"name"`
	Style string `json:"style"`
}

func (r *Router) handleListArtists(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	artists, err := r.artistService.List(req.Context(), userID)
	if err != nil {
		r.logger.Error("failed to list artists", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if artists == nil {
		artists = []artist.Artist{}
	}
	writeJSON(w, http.StatusOK, artists)
}

func (r *Router) handleCreateArtist(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var body artistBody
	if !readJSON(w, req, &body) {
		return
	}

	a, err := r.artistService.Create(req.Context(), userID, body.Name, body.Style)
	if status, msg, ok := artistErrorStatus(err); !ok {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (r *Router) handleGetArtist(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	a, err := r.artistService.GetByID(req.Context(), userID, req.PathValue("id"))
	if status, msg, ok := artistErrorStatus(err); !ok {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (r *Router) handleUpdateArtist(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	var body artistBody
	if !readJSON(w, req, &body) {
		return
	}

	a, err := r.artistService.Update(req.Context(), userID, req.PathValue("id"), body.Name, body.Style)
	if status, msg, ok := artistErrorStatus(err); !ok {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (r *Router) handleDeleteArtist(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	err := r.artistService.Delete(req.Context(), userID, req.PathValue("id"))
	if status, msg, ok := artistErrorStatus(err); !ok {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (r *Router) handleExportArtists(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	data, err := r.transferService.ExportArtists(req.Context(), userID)
	if err != nil {
		r.logger.Error("failed to export artists", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="artists.json"`)
	_, _ = w.Write(data)
}

func (r *Router) handleImportArtists(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	data, ok := readRawBody(w, req)
	if !ok {
		return
	}

	result, err := r.transferService.ImportArtists(req.Context(), userID, data)
	if errors.Is(err, transfer.ErrNotArray) {
		writeError(w, http.StatusBadRequest, "import document must be a JSON array")
		return
	}
	if err != nil {
		r.logger.Error("failed to import artists", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// artistErrorStatus maps the artist service's failures to HTTP statuses. The
// ok result is true when err is nil.
func artistErrorStatus(err error) (int, string, bool) {
	switch {
	case err == nil:
		return 0, "", true
	case errors.Is(err, artist.ErrEmptyField):
		return http.StatusBadRequest, err.Error(), false
	case errors.Is(err, artist.ErrDuplicateName):
		return http.StatusConflict, err.Error(), false
	case errors.Is(err, artist.ErrNotFound):
		return http.StatusNotFound, err.Error(), false
	default:
		return http.StatusInternalServerError, "internal error", false
	}
}
