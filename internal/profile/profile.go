// Package profile assembles the signed-in user's workspace state and manages
// their generation credential, which is encrypted at rest.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quillrook/songsmith/internal/artist"
	"github.com/quillrook/songsmith/internal/encryption"
	"github.com/quillrook/songsmith/internal/history"
)

// ErrEmptyCredential is returned when a blank credential is submitted.
var ErrEmptyCredential = errors.New("credential must not be empty")

// Profile is the bootstrap payload for a signed-in session: identity, whether
// a generation credential is on file, and the full roster with its ledger.
type Profile struct {
	Email         string                   `json:"email"`
	DisplayName   string                   `json:"display_name"`
	HasCredential bool                     `json:"has_credential"`
	Artists       []artist.Artist          `json:"artists"`
	History       map[string]history.Entry `json:"history"`
}

// Service provides profile and credential operations.
type Service struct {
	db      *sql.DB
	enc     *encryption.Encryptor
	artists *artist.Service
	ledger  *history.Service
}

// NewService creates a profile service.
func NewService(db *sql.DB, enc *encryption.Encryptor, artists *artist.Service, ledger *history.Service) *Service {
	return &Service{db: db, enc: enc, artists: artists, ledger: ledger}
}

// Load returns the user's full workspace snapshot.
func (s *Service) Load(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	var encryptedKey string
	err := s.db.QueryRowContext(ctx,
		"SELECT email, display_name, encrypted_api_key FROM users WHERE id = ?",
		userID).Scan(&p.Email, &p.DisplayName, &encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	p.HasCredential = encryptedKey != ""

	if p.Artists, err = s.artists.List(ctx, userID); err != nil {
		return nil, err
	}
	if p.Artists == nil {
		p.Artists = []artist.Artist{}
	}
	if p.History, err = s.ledger.ExportAll(ctx, userID); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetCredential encrypts and stores the user's generation credential,
// replacing any previous one.
func (s *Service) SetCredential(ctx context.Context, userID, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ErrEmptyCredential
	}

	encrypted, err := s.enc.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypting credential: %w", err)
	}
	return s.storeCredential(ctx, userID, encrypted)
}

// Credential returns the user's decrypted generation credential, or the empty
// string when none is stored.
func (s *Service) Credential(ctx context.Context, userID string) (string, error) {
	var encrypted string
	err := s.db.QueryRowContext(ctx,
		"SELECT encrypted_api_key FROM users WHERE id = ?", userID).Scan(&encrypted)
	if err != nil {
		return "", fmt.Errorf("reading credential: %w", err)
	}
	if encrypted == "" {
		return "", nil
	}

	apiKey, err := s.enc.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting credential: %w", err)
	}
	return apiKey, nil
}

// ClearCredential removes the user's stored credential.
func (s *Service) ClearCredential(ctx context.Context, userID string) error {
	return s.storeCredential(ctx, userID, "")
}

func (s *Service) storeCredential(ctx context.Context, userID, encrypted string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET encrypted_api_key = ?, updated_at = ? WHERE id = ?",
		encrypted, now, userID)
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storing credential: no such user")
	}
	return nil
}
