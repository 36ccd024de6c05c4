// Package api exposes the HTTP surface: session auth, profile, artist roster,
// generation ledger, transfer documents, and the generation endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/quillrook/songsmith/internal/api/middleware"
	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/auth"
	"github.com/quillrook/songsmith/internal/generate"
	"github.com/quillrook/songsmith/internal/history"
	"github.com/quillrook/songsmith/internal/profile"
	"github.com/quillrook/songsmith/internal/prompt"
	"github.com/quillrook/songsmith/internal/transfer"
)

// Generator is the generation gateway surface the handlers call.
type Generator interface {
	Generate(ctx context.Context, apiKey string, req prompt.Request) (*generate.SongConcept, error)
	SuggestTheme(ctx context.Context, apiKey string, req prompt.Request) (string, error)
}

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	AuthService     *auth.Service
	ArtistService   *artist.Service
	HistoryService  *history.Service
	ProfileService  *profile.Service
	TransferService *transfer.Service
	Generator       Generator
	Model           string
	Logger          *slog.Logger
	BasePath        string
	StaticDir       string
	SecureCookies   bool
}

// Router sets up all HTTP routes for the application.
type Router struct {
	authService     *auth.Service
	artistService   *artist.Service
	historyService  *history.Service
	profileService  *profile.Service
	transferService *transfer.Service
	generator       Generator
	model           string
	logger          *slog.Logger
	basePath        string
	staticDir       string
	secureCookies   bool

	// Per-(user,artist) generation sequence. A finished generation commits
	// only if its token is still the latest, so the last started request
	// wins when a user fires several in a row.
	genMu  sync.Mutex
	genSeq map[string]uint64
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		authService:     deps.AuthService,
		artistService:   deps.ArtistService,
		historyService:  deps.HistoryService,
		profileService:  deps.ProfileService,
		transferService: deps.TransferService,
		generator:       deps.Generator,
		model:           deps.Model,
		logger:          deps.Logger,
		basePath:        deps.BasePath,
		staticDir:       deps.StaticDir,
		secureCookies:   deps.SecureCookies,
		genSeq:          make(map[string]uint64),
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	authMw := middleware.Auth(r.authService)
	loginLimiter := middleware.NewLoginRateLimiter()
	mux := http.NewServeMux()
	bp := r.basePath

	// Public routes (no auth)
	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)
	mux.Handle("POST "+bp+"/api/v1/auth/signup", loginLimiter.Middleware(http.HandlerFunc(r.handleSignup)))
	mux.Handle("POST "+bp+"/api/v1/auth/login", loginLimiter.Middleware(http.HandlerFunc(r.handleLogin)))
	mux.Handle("GET "+bp+"/static/", r.staticHandler())
	mux.HandleFunc("GET "+bp+"/", r.handleIndex)

	// Protected routes (auth required)
	mux.HandleFunc("POST "+bp+"/api/v1/auth/logout", wrapAuth(r.handleLogout, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/auth/me", wrapAuth(r.handleMe, authMw))

	mux.HandleFunc("GET "+bp+"/api/v1/profile", wrapAuth(r.handleProfile, authMw))
	mux.HandleFunc("PUT "+bp+"/api/v1/profile/credential", wrapAuth(r.handleSetCredential, authMw))
	mux.HandleFunc("DELETE "+bp+"/api/v1/profile/credential", wrapAuth(r.handleClearCredential, authMw))

	mux.HandleFunc("GET "+bp+"/api/v1/artists", wrapAuth(r.handleListArtists, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/artists", wrapAuth(r.handleCreateArtist, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/artists/export", wrapAuth(r.handleExportArtists, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/artists/import", wrapAuth(r.handleImportArtists, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/artists/{id}", wrapAuth(r.handleGetArtist, authMw))
	mux.HandleFunc("PUT "+bp+"/api/v1/artists/{id}", wrapAuth(r.handleUpdateArtist, authMw))
	mux.HandleFunc("DELETE "+bp+"/api/v1/artists/{id}", wrapAuth(r.handleDeleteArtist, authMw))

	mux.HandleFunc("GET "+bp+"/api/v1/artists/{id}/history", wrapAuth(r.handleGetHistory, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/history/export", wrapAuth(r.handleExportHistory, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/history/import", wrapAuth(r.handleImportHistory, authMw))

	mux.HandleFunc("POST "+bp+"/api/v1/artists/{id}/generate", wrapAuth(r.handleGenerate, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/artists/{id}/suggest-theme", wrapAuth(r.handleSuggestTheme, authMw))

	// Logging and security headers apply to all requests.
	return middleware.Logging(r.logger)(middleware.SecurityHeaders(mux))
}

// wrapAuth wraps a handler function with auth middleware.
func wrapAuth(fn http.HandlerFunc, authMw func(http.Handler) http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authMw(fn).ServeHTTP(w, r)
	}
}
