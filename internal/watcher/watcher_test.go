package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/auth"
)

type stubImporter struct {
	artistCalls  []string
	historyCalls []string
	fail         bool
}

func (s *stubImporter) ImportArtists(_ context.Context, userID string, data []byte) (artist.ImportResult, error) {
	s.artistCalls = append(s.artistCalls, string(data))
	if s.fail {
		return artist.ImportResult{}, io.ErrUnexpectedEOF
	}
	_ = userID
	return artist.ImportResult{Added: 1}, nil
}

func (s *stubImporter) ImportHistory(_ context.Context, _ string, data []byte) error {
	s.historyCalls = append(s.historyCalls, string(data))
	if s.fail {
		return io.ErrUnexpectedEOF
	}
	return nil
}

type stubResolver struct {
	user *auth.User
}

func (s *stubResolver) GetUserByEmail(context.Context, string) (*auth.User, error) {
	return s.user, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, imp *stubImporter, owner *auth.User) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc := NewService(dir, "owner@example.com", imp, &stubResolver{user: owner}, testLogger())
	return svc, dir
}

func TestRoute(t *testing.T) {
	cases := map[string]Kind{
		"roster.artists.json":         RouteArtists,
		"backup.history.json":         RouteHistory,
		"roster.artists.json.done":    RouteNone,
		"backup.history.json.err":     RouteNone,
		"notes.txt":                   RouteNone,
		"artists.json":                RouteNone,
		"/inbox/drop.artists.json":    RouteArtists,
		"/inbox/ledger.history.json":  RouteHistory,
		"/inbox/ledger.history.json5": RouteNone,
	}
	for path, want := range cases {
		if got := Route(path); got != want {
			t.Errorf("Route(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestProcessArtistsFile(t *testing.T) {
	imp := &stubImporter{}
	svc, dir := newTestService(t, imp, &auth.User{ID: "owner-1"})

	path := filepath.Join(dir, "drop.artists.json")
	if err := os.WriteFile(path, []byte(`[{"name":"X","style":"Y"}]`), 0o644); err != nil {
		t.Fatalf("writing drop file: %v", err)
	}

	svc.process(context.Background(), path)

	if len(imp.artistCalls) != 1 || !strings.Contains(imp.artistCalls[0], `"X"`) {
		t.Errorf("artistCalls = %v, want the file contents", imp.artistCalls)
	}
	if _, err := os.Stat(path + doneSuffix); err != nil {
		t.Errorf("expected %s marker: %v", doneSuffix, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file should be renamed away")
	}
}

func TestProcessHistoryFile(t *testing.T) {
	imp := &stubImporter{}
	svc, dir := newTestService(t, imp, &auth.User{ID: "owner-1"})

	path := filepath.Join(dir, "ledger.history.json")
	if err := os.WriteFile(path, []byte(`{"a":{"titles":["T"]}}`), 0o644); err != nil {
		t.Fatalf("writing drop file: %v", err)
	}

	svc.process(context.Background(), path)

	if len(imp.historyCalls) != 1 {
		t.Fatalf("historyCalls = %v, want one call", imp.historyCalls)
	}
	if len(imp.artistCalls) != 0 {
		t.Error("history file must not hit the roster importer")
	}
}

func TestProcessFailureMarksErr(t *testing.T) {
	imp := &stubImporter{fail: true}
	svc, dir := newTestService(t, imp, &auth.User{ID: "owner-1"})

	path := filepath.Join(dir, "bad.artists.json")
	if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
		t.Fatalf("writing drop file: %v", err)
	}

	svc.process(context.Background(), path)

	if _, err := os.Stat(path + errSuffix); err != nil {
		t.Errorf("expected %s marker: %v", errSuffix, err)
	}
}

func TestProcessMissingOwnerMarksErr(t *testing.T) {
	imp := &stubImporter{}
	svc, dir := newTestService(t, imp, nil)

	path := filepath.Join(dir, "drop.artists.json")
	if err := os.WriteFile(path, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("writing drop file: %v", err)
	}

	svc.process(context.Background(), path)

	if len(imp.artistCalls) != 0 {
		t.Error("no import should happen without a resolvable owner")
	}
	if _, err := os.Stat(path + errSuffix); err != nil {
		t.Errorf("expected %s marker: %v", errSuffix, err)
	}
}

func TestSweepProcessesExistingFiles(t *testing.T) {
	imp := &stubImporter{}
	svc, dir := newTestService(t, imp, &auth.User{ID: "owner-1"})

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	mustWrite("a.artists.json", `[]`)
	mustWrite("b.history.json", `{}`)
	mustWrite("c.artists.json.done", `[]`)
	mustWrite("ignore.txt", `hi`)

	svc.sweep(context.Background())

	if len(imp.artistCalls) != 1 {
		t.Errorf("artistCalls = %d, want 1 (done marker skipped)", len(imp.artistCalls))
	}
	if len(imp.historyCalls) != 1 {
		t.Errorf("historyCalls = %d, want 1", len(imp.historyCalls))
	}
}
