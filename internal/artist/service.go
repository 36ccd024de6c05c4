package artist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Validation failures surfaced inline near the offending form field.
var (
	ErrEmptyField    = errors.New("name and style are required")
	ErrDuplicateName = errors.New("an artist with that name already exists")
	ErrNotFound      = errors.New("artist not found")
)

// Service provides artist roster operations, scoped per user.
type Service struct {
	db *sql.DB
}

// NewService creates an artist service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a new artist. Name and style are trimmed; empty fields and
// case-insensitive duplicate names are rejected.
func (s *Service) Create(ctx context.Context, userID, name, style string) (*Artist, error) {
	name = strings.TrimSpace(name)
	style = strings.TrimSpace(style)
	if name == "" || style == "" {
		return nil, ErrEmptyField
	}

	dup, err := s.nameExists(ctx, userID, name, "")
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateName
	}

	now := time.Now().UTC()
	a := &Artist{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Style:     style,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artists (id, user_id, name, style, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Name, a.Style,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("creating artist: %w", err)
	}
	return a, nil
}

// Update modifies an existing artist with the same validation as Create,
// excluding the edited record from the duplicate check.
func (s *Service) Update(ctx context.Context, userID, id, name, style string) (*Artist, error) {
	name = strings.TrimSpace(name)
	style = strings.TrimSpace(style)
	if name == "" || style == "" {
		return nil, ErrEmptyField
	}

	dup, err := s.nameExists(ctx, userID, name, id)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateName
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE artists SET name = ?, style = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, name, style, now.Format(time.RFC3339), id, userID)
	if err != nil {
		return nil, fmt.Errorf("updating artist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return s.GetByID(ctx, userID, id)
}

// Delete removes an artist and its generation history in one transaction.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	res, err := tx.ExecContext(ctx,
		"DELETE FROM artists WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting artist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM history WHERE artist_id = ? AND user_id = ?", id, userID); err != nil {
		return fmt.Errorf("deleting artist history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// GetByID retrieves an artist by primary key.
func (s *Service) GetByID(ctx context.Context, userID, id string) (*Artist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, style, created_at, updated_at
		FROM artists WHERE id = ? AND user_id = ?
	`, id, userID)
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist: %w", err)
	}
	return a, nil
}

// List returns the user's roster in creation order.
func (s *Service) List(ctx context.Context, userID string) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, style, created_at, updated_at
		FROM artists WHERE user_id = ?
		ORDER BY created_at, name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var artists []Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artist row: %w", err)
		}
		artists = append(artists, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artist rows: %w", err)
	}
	return artists, nil
}

// ImportMerge merges externally supplied candidate records into the roster.
// Matching is by lowercased trimmed name: an existing artist with a differing
// style has its style overwritten (counted as updated); unmatched candidates
// become new artists (counted as added). Invalid records are silently
// dropped. Later candidates win when the same name appears twice.
func (s *Service) ImportMerge(ctx context.Context, userID string, records []ImportRecord) (ImportResult, error) {
	var result ImportResult

	for _, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			continue
		}

		existing, err := s.getByLowerName(ctx, userID, name)
		if err != nil {
			return result, err
		}

		if existing != nil {
			if existing.Style == rec.Style {
				continue
			}
			now := time.Now().UTC().Format(time.RFC3339)
			if _, err := s.db.ExecContext(ctx,
				"UPDATE artists SET style = ?, updated_at = ? WHERE id = ?",
				rec.Style, now, existing.ID); err != nil {
				return result, fmt.Errorf("updating imported artist %q: %w", name, err)
			}
			result.Updated++
			continue
		}

		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO artists (id, user_id, name, style, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), userID, name, rec.Style, now, now); err != nil {
			return result, fmt.Errorf("inserting imported artist %q: %w", name, err)
		}
		result.Added++
	}

	return result, nil
}

// nameExists checks for a case-insensitive name collision, optionally
// excluding one record (the one being edited).
func (s *Service) nameExists(ctx context.Context, userID, name, excludeID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM artists
		WHERE user_id = ? AND lower(name) = lower(?) AND id != ?
	`, userID, name, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking name: %w", err)
	}
	return count > 0, nil
}

func (s *Service) getByLowerName(ctx context.Context, userID, name string) (*Artist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, style, created_at, updated_at
		FROM artists WHERE user_id = ? AND lower(name) = lower(?)
	`, userID, name)
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by name: %w", err)
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtist(row scanner) (*Artist, error) {
	var a Artist
	var createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Style, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &a, nil
}
