// Package watcher runs the optional import inbox: a watched drop directory
// where roster and ledger documents are picked up and imported for the
// configured owner account.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/auth"
)

// Suffixes routing a dropped file to an importer. Processed files are renamed
// with a terminal marker so they are never picked up twice.
const (
	artistsSuffix = ".artists.json"
	historySuffix = ".history.json"
	doneSuffix    = ".done"
	errSuffix     = ".err"
)

// Importer applies transfer documents for a user.
type Importer interface {
	ImportArtists(ctx context.Context, userID string, data []byte) (artist.ImportResult, error)
	ImportHistory(ctx context.Context, userID string, data []byte) error
}

// UserResolver maps the configured owner email to an account.
type UserResolver interface {
	GetUserByEmail(ctx context.Context, email string) (*auth.User, error)
}

// Service watches the inbox directory and imports dropped documents.
type Service struct {
	path       string
	ownerEmail string
	importer   Importer
	users      UserResolver
	logger     *slog.Logger
	debounce   time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewService creates an inbox watcher for the given directory and owner.
func NewService(path, ownerEmail string, importer Importer, users UserResolver, logger *slog.Logger) *Service {
	return &Service{
		path:       path,
		ownerEmail: ownerEmail,
		importer:   importer,
		users:      users,
		logger:     logger.With("component", "inbox-watcher"),
		debounce:   1 * time.Second,
		pending:    make(map[string]struct{}),
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Start blocks until ctx is canceled. Files already sitting in the inbox are
// processed first; after that, create and write events are coalesced per the
// debounce interval before processing, so half-written drops are not read.
func (s *Service) Start(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Error("fsnotify unavailable, inbox disabled", "error", err)
		return
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(s.path); err != nil {
		s.logger.Error("failed to watch inbox", "path", s.path, "error", err)
		return
	}
	s.logger.Info("inbox watcher starting", "path", s.path, "owner", s.ownerEmail)

	s.sweep(ctx)

	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("inbox watcher stopping")
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if Route(ev.Name) == RouteNone {
				continue
			}
			s.mu.Lock()
			s.pending[ev.Name] = struct{}{}
			s.mu.Unlock()
			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(s.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			s.mu.Lock()
			paths := make([]string, 0, len(s.pending))
			for p := range s.pending {
				paths = append(paths, p)
			}
			s.pending = make(map[string]struct{})
			s.mu.Unlock()

			for _, p := range paths {
				s.process(ctx, p)
			}
		}
	}
}

// sweep processes documents that were dropped while the watcher was down.
func (s *Service) sweep(ctx context.Context) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		s.logger.Error("failed to read inbox", "path", s.path, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(s.path, e.Name())
		if Route(full) != RouteNone {
			s.process(ctx, full)
		}
	}
}

// process imports one dropped file and renames it with a terminal marker.
func (s *Service) process(ctx context.Context, path string) {
	err := s.importFile(ctx, path)

	marker := doneSuffix
	if err != nil {
		marker = errSuffix
		s.logger.Error("inbox import failed", "file", filepath.Base(path), "error", err)
	} else {
		s.logger.Info("inbox import applied", "file", filepath.Base(path))
	}

	if renameErr := os.Rename(path, path+marker); renameErr != nil && !os.IsNotExist(renameErr) {
		s.logger.Error("failed to mark inbox file", "file", filepath.Base(path), "error", renameErr)
	}
}

func (s *Service) importFile(ctx context.Context, path string) error {
	owner, err := s.users.GetUserByEmail(ctx, s.ownerEmail)
	if err != nil {
		return fmt.Errorf("resolving inbox owner: %w", err)
	}
	if owner == nil {
		return fmt.Errorf("inbox owner %q has no account", s.ownerEmail)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading inbox file: %w", err)
	}

	switch Route(path) {
	case RouteArtists:
		result, err := s.importer.ImportArtists(ctx, owner.ID, data)
		if err != nil {
			return err
		}
		s.logger.Info("roster imported from inbox",
			"file", filepath.Base(path),
			"added", result.Added,
			"updated", result.Updated,
		)
		return nil
	case RouteHistory:
		return s.importer.ImportHistory(ctx, owner.ID, data)
	default:
		return fmt.Errorf("unroutable inbox file %q", filepath.Base(path))
	}
}

// Kind classifies a dropped file by its suffix.
type Kind int

const (
	RouteNone Kind = iota
	RouteArtists
	RouteHistory
)

// Route classifies an inbox path. Already-processed files (terminal markers)
// and everything else unrecognized map to RouteNone.
func Route(path string) Kind {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, artistsSuffix):
		return RouteArtists
	case strings.HasSuffix(name, historySuffix):
		return RouteHistory
	default:
		return RouteNone
	}
}
