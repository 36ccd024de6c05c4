// Package history keeps the per-artist ledger of previously generated
// titles, themes, and lyrics, used to steer new generations away from
// repeating themselves.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry holds the ordered, append-only lists recorded for one artist.
type Entry struct {
	Titles []string `json:"titles"`
	Themes []string `json:"themes"`
	Lyrics []string `json:"lyrics"`
}

// Service provides ledger operations, scoped per user.
type Service struct {
	db *sql.DB
}

// NewService creates a history service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// RecordTitle appends a title to the artist's ledger entry, creating the
// entry if absent.
func (s *Service) RecordTitle(ctx context.Context, userID, artistID, title string) error {
	return s.appendTo(ctx, userID, artistID, "titles", title)
}

// RecordTheme appends a theme to the artist's ledger entry.
func (s *Service) RecordTheme(ctx context.Context, userID, artistID, theme string) error {
	return s.appendTo(ctx, userID, artistID, "themes", theme)
}

// RecordLyrics appends a lyric body to the artist's ledger entry.
func (s *Service) RecordLyrics(ctx context.Context, userID, artistID, lyrics string) error {
	return s.appendTo(ctx, userID, artistID, "lyrics", lyrics)
}

// appendTo reads, appends, and rewrites one of the three lists inside a
// transaction so concurrent appends to the same entry cannot lose writes.
func (s *Service) appendTo(ctx context.Context, userID, artistID, column, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)

	var encoded string
	err = tx.QueryRowContext(ctx,
		"SELECT "+column+" FROM history WHERE user_id = ? AND artist_id = ?", //nolint:gosec // G202: column is a compile-time constant
		userID, artistID).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO history (user_id, artist_id, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, userID, artistID, now, now); err != nil {
			return fmt.Errorf("creating history entry: %w", err)
		}
		encoded = "[]"
	} else if err != nil {
		return fmt.Errorf("reading history entry: %w", err)
	}

	list := unmarshalList(encoded)
	list = append(list, value)

	if _, err := tx.ExecContext(ctx,
		"UPDATE history SET "+column+" = ?, updated_at = ? WHERE user_id = ? AND artist_id = ?", //nolint:gosec // G202: column is a compile-time constant
		marshalList(list), now, userID, artistID); err != nil {
		return fmt.Errorf("appending to history: %w", err)
	}

	return tx.Commit()
}

// Get returns the artist's ledger entry. A missing entry yields three empty
// lists, not an error.
func (s *Service) Get(ctx context.Context, userID, artistID string) (Entry, error) {
	var titles, themes, lyrics string
	err := s.db.QueryRowContext(ctx, `
		SELECT titles, themes, lyrics FROM history
		WHERE user_id = ? AND artist_id = ?
	`, userID, artistID).Scan(&titles, &themes, &lyrics)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("reading history entry: %w", err)
	}
	return Entry{
		Titles: unmarshalList(titles),
		Themes: unmarshalList(themes),
		Lyrics: unmarshalList(lyrics),
	}, nil
}

// Forget removes the artist's entire ledger entry. Artist deletion does not
// go through here: it clears the ledger row inside its own transaction so the
// cascade stays atomic. Forget is for resetting a ledger on its own.
func (s *Service) Forget(ctx context.Context, userID, artistID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM history WHERE user_id = ? AND artist_id = ?", userID, artistID)
	if err != nil {
		return fmt.Errorf("forgetting history entry: %w", err)
	}
	return nil
}

// ExportAll returns the user's whole ledger keyed by artist id.
func (s *Service) ExportAll(ctx context.Context, userID string) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT artist_id, titles, themes, lyrics FROM history WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("exporting history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result := make(map[string]Entry)
	for rows.Next() {
		var artistID, titles, themes, lyrics string
		if err := rows.Scan(&artistID, &titles, &themes, &lyrics); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		result[artistID] = Entry{
			Titles: unmarshalList(titles),
			Themes: unmarshalList(themes),
			Lyrics: unmarshalList(lyrics),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return result, nil
}

// ImportMerge merges an external ledger per top-level key: each imported
// artist id fully overwrites any existing entry for that id, and other
// entries are untouched. Imports are treated as authoritative per key; the
// lists are not union-appended.
func (s *Service) ImportMerge(ctx context.Context, userID string, data map[string]Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for artistID, entry := range data {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO history (user_id, artist_id, titles, themes, lyrics, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, artist_id) DO UPDATE SET
				titles = excluded.titles,
				themes = excluded.themes,
				lyrics = excluded.lyrics,
				updated_at = excluded.updated_at
		`, userID, artistID,
			marshalList(entry.Titles), marshalList(entry.Themes), marshalList(entry.Lyrics),
			now, now); err != nil {
			return fmt.Errorf("importing history for %s: %w", artistID, err)
		}
	}

	return tx.Commit()
}

// marshalList encodes a string slice as a JSON array string.
func marshalList(s []string) string {
	if s == nil {
		return "[]"
	}
	data, _ := json.Marshal(s)
	return string(data)
}

// unmarshalList decodes a JSON array string into a string slice.
func unmarshalList(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}
	return result
}
