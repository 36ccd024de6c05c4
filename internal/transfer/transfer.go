// Package transfer moves the artist roster and generation ledger in and out
// of the system as JSON documents. Document shape is validated up front;
// nothing is written when the top-level shape is wrong.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/history"
)

// Shape errors, surfaced before any row is touched.
var (
	ErrNotArray  = errors.New("document must be a JSON array")
	ErrNotObject = errors.New("document must be a JSON object")
)

// Service bridges JSON documents to the roster and ledger merge rules.
type Service struct {
	artists *artist.Service
	ledger  *history.Service
}

// NewService creates a transfer service.
func NewService(artists *artist.Service, ledger *history.Service) *Service {
	return &Service{artists: artists, ledger: ledger}
}

// exportedArtist is the roster's wire shape: name and style only, so a
// document exported from one account imports cleanly into another.
type exportedArtist struct {
	Name  string `json:"name"`
	Style string `json:"style"`
}

// ExportArtists renders the user's roster as an indented JSON array.
func (s *Service) ExportArtists(ctx context.Context, userID string) ([]byte, error) {
	list, err := s.artists.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]exportedArtist, 0, len(list))
	for _, a := range list {
		out = append(out, exportedArtist{Name: a.Name, Style: a.Style})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding roster: %w", err)
	}
	return data, nil
}

// ImportArtists merges a JSON roster document into the user's roster. A
// document whose top level is not an array is rejected before any mutation.
// Elements that are not objects with string name and style fields are
// dropped; valid elements still apply.
func (s *Service) ImportArtists(ctx context.Context, userID string, data []byte) (artist.ImportResult, error) {
	var rawItems []json.RawMessage
	if err := json.Unmarshal(data, &rawItems); err != nil {
		return artist.ImportResult{}, fmt.Errorf("%w: %v", ErrNotArray, err)
	}

	records := make([]artist.ImportRecord, 0, len(rawItems))
	for _, raw := range rawItems {
		// Pointer fields distinguish an absent key from an empty string,
		// so a candidate with no style key is dropped rather than applied.
		var rec struct {
			Name  *string `json:"name"`
			Style *string `json:"style"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if rec.Name == nil || rec.Style == nil || strings.TrimSpace(*rec.Name) == "" {
			continue
		}
		records = append(records, artist.ImportRecord{Name: *rec.Name, Style: *rec.Style})
	}

	return s.artists.ImportMerge(ctx, userID, records)
}

// ExportHistory renders the user's whole ledger as an indented JSON object
// keyed by artist id.
func (s *Service) ExportHistory(ctx context.Context, userID string) ([]byte, error) {
	all, err := s.ledger.ExportAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Entries marshal with non-nil lists so re-imports round-trip.
	for id, entry := range all {
		all[id] = normalize(entry)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding ledger: %w", err)
	}
	return data, nil
}

// ImportHistory merges a JSON ledger document. A document whose top level is
// not an object is rejected before any mutation. Entries that are not objects
// of string lists are dropped; valid entries overwrite their artist id's
// ledger entry wholesale.
func (s *Service) ImportHistory(ctx context.Context, userID string, data []byte) error {
	var rawEntries map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawEntries); err != nil {
		return fmt.Errorf("%w: %v", ErrNotObject, err)
	}

	entries := make(map[string]history.Entry, len(rawEntries))
	for artistID, raw := range rawEntries {
		var entry history.Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		entries[artistID] = entry
	}

	return s.ledger.ImportMerge(ctx, userID, entries)
}

func normalize(e history.Entry) history.Entry {
	if e.Titles == nil {
		e.Titles = []string{}
	}
	if e.Themes == nil {
		e.Themes = []string{}
	}
	if e.Lyrics == nil {
		e.Lyrics = []string{}
	}
	return e
}
