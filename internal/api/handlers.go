package api

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/quillrook/songsmith/internal/version"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	http.ServeFile(w, req, filepath.Join(r.staticDir, "index.html"))
}

func (r *Router) staticHandler() http.Handler {
	fileServer := http.FileServer(http.Dir(r.staticDir))
	return http.StripPrefix(r.basePath+"/static/", fileServer)
}

// errorBody is the uniform error envelope: a stable machine-readable code and
// a human message.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func readJSON(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// maxImportBytes bounds uploaded transfer documents.
const maxImportBytes = 10 << 20

func readRawBody(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(req.Body, maxImportBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	if len(data) > maxImportBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return nil, false
	}
	return data, true
}
