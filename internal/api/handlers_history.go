package api

import (
	"errors"
	"net/http"

	"github.com/quillrook/songsmith/internal/api/middleware"
	"github.com/quillrook/songsmith/internal/transfer"
)

func (r *Router) handleGetHistory(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	entry, err := r.historyService.Get(req.Context(), userID, req.PathValue("id"))
	if err != nil {
		r.logger.Error("failed to read history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (r *Router) handleExportHistory(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	data, err := r.transferService.ExportHistory(req.Context(), userID)
	if err != nil {
		r.logger.Error("failed to export history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="history.json"`)
	_, _ = w.Write(data)
}

func (r *Router) handleImportHistory(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())

	data, ok := readRawBody(w, req)
	if !ok {
		return
	}

	err := r.transferService.ImportHistory(req.Context(), userID, data)
	if errors.Is(err, transfer.ErrNotObject) {
		writeError(w, http.StatusBadRequest, "import document must be a JSON object")
		return
	}
	if err != nil {
		r.logger.Error("failed to import history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
