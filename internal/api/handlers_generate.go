package api

import (
	"errors"
	"net/http"

	"github.com/quillrook/songsmith/internal/api/middleware"
	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/generate"
	"github.com/quillrook/songsmith/internal/prompt"
)

func (r *Router) handleGenerate(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())
	artistID := req.PathValue("id")

	var body struct {
		Theme        string `json:"theme"`
		Creativity   int    `json:"creativity"`
		Instrumental bool   `json:"instrumental"`
		Language     string `json:"language"`
		Only         string `json:"only"`
	}
	if !readJSON(w, req, &body) {
		return
	}

	creativity, err := prompt.ParseCreativity(body.Creativity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var only prompt.Field
	switch body.Only {
	case "":
	case string(prompt.FieldTitle), string(prompt.FieldStyle), string(prompt.FieldLyrics):
		only = prompt.Field(body.Only)
	default:
		writeError(w, http.StatusBadRequest, "only must be title, style, or lyrics")
		return
	}

	a, err := r.artistService.GetByID(req.Context(), userID, artistID)
	if errors.Is(err, artist.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	hist, err := r.historyService.Get(req.Context(), userID, artistID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	apiKey, err := r.profileService.Credential(req.Context(), userID)
	if err != nil {
		r.logger.Error("failed to read credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	genReq := prompt.Build(prompt.Params{
		Model:        r.model,
		ArtistName:   a.Name,
		ArtistStyle:  a.Style,
		Theme:        body.Theme,
		Creativity:   creativity,
		Instrumental: body.Instrumental,
		Language:     body.Language,
		Only:         only,
		History:      hist,
	})

	token := r.nextGenToken(userID, artistID)
	concept, err := r.generator.Generate(req.Context(), apiKey, genReq)
	if err != nil {
		r.writeGenerateError(w, err)
		return
	}

	// Only the latest-started request for this artist may commit.
	if !r.isLatestGenToken(userID, artistID, token) {
		writeErrorCode(w, http.StatusConflict, "superseded", "a newer generation replaced this one")
		return
	}

	if concept.Title != "" {
		if err := r.historyService.RecordTitle(req.Context(), userID, artistID, concept.Title); err != nil {
			r.logger.Error("failed to record title", "error", err)
		}
	}
	if concept.Lyrics != "" {
		if err := r.historyService.RecordLyrics(req.Context(), userID, artistID, concept.Lyrics); err != nil {
			r.logger.Error("failed to record lyrics", "error", err)
		}
	}
	if theme := body.Theme; theme != "" {
		if err := r.historyService.RecordTheme(req.Context(), userID, artistID, theme); err != nil {
			r.logger.Error("failed to record theme", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, concept)
}

func (r *Router) handleSuggestTheme(w http.ResponseWriter, req *http.Request) {
	userID := middleware.UserIDFromContext(req.Context())
	artistID := req.PathValue("id")

	a, err := r.artistService.GetByID(req.Context(), userID, artistID)
	if errors.Is(err, artist.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	hist, err := r.historyService.Get(req.Context(), userID, artistID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	apiKey, err := r.profileService.Credential(req.Context(), userID)
	if err != nil {
		r.logger.Error("failed to read credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	genReq := prompt.BuildThemeSuggestion(r.model, a.Name, a.Style, hist)
	theme, err := r.generator.SuggestTheme(req.Context(), apiKey, genReq)
	if err != nil {
		r.writeGenerateError(w, err)
		return
	}

	recorded := prompt.ThemePrefix + theme
	if err := r.historyService.RecordTheme(req.Context(), userID, artistID, recorded); err != nil {
		r.logger.Error("failed to record theme", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

// writeGenerateError maps the gateway's failure taxonomy onto statuses and
// stable codes the client branches on.
func (r *Router) writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generate.ErrNoCredential):
		writeErrorCode(w, http.StatusPreconditionFailed, "credential_missing",
			"no generation credential configured; add one in your profile")
	case errors.Is(err, generate.ErrCredentialRejected):
		writeErrorCode(w, http.StatusUnauthorized, "credential_rejected",
			"the generation service rejected your credential")
	case errors.Is(err, generate.ErrUnparseable):
		writeErrorCode(w, http.StatusBadGateway, "bad_response",
			"the generation service returned an unusable response; try again")
	default:
		r.logger.Error("generation failed", "error", err)
		writeErrorCode(w, http.StatusBadGateway, "service_error",
			"the generation service is unavailable; try again later")
	}
}

func genKey(userID, artistID string) string {
	return userID + "|" + artistID
}

func (r *Router) nextGenToken(userID, artistID string) uint64 {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	r.genSeq[genKey(userID, artistID)]++
	return r.genSeq[genKey(userID, artistID)]
}

func (r *Router) isLatestGenToken(userID, artistID string, token uint64) bool {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	return r.genSeq[genKey(userID, artistID)] == token
}
