// Package auth provides account and session management.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sessionDuration = 24 * time.Hour

// Typed failures surfaced to the signup and login handlers.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("an account with that email already exists")
	ErrNameTaken          = errors.New("that display name is already taken")
	ErrUnknownName        = errors.New("no account with that display name")
)

// User is an account row without its password hash.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service provides authentication operations.
type Service struct {
	db *sql.DB
}

// NewService creates an auth service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// SignUp creates a new account. Email and display name must be unique;
// display-name uniqueness is case-insensitive.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	displayName = strings.TrimSpace(displayName)

	if email == "" || !strings.Contains(email, "@") {
		return "", errors.New("a valid email is required")
	}
	if displayName == "" {
		return "", errors.New("a display name is required")
	}
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&count); err != nil {
		return "", fmt.Errorf("checking email: %w", err)
	}
	if count > 0 {
		return "", ErrEmailTaken
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE lower(display_name) = lower(?)", displayName).Scan(&count); err != nil {
		return "", fmt.Errorf("checking display name: %w", err)
	}
	if count > 0 {
		return "", ErrNameTaken
	}

	hash, err := bcrypt.GenerateFromPassword(prehashPassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, email, displayName, string(hash), now, now)
	if err != nil {
		return "", fmt.Errorf("creating user: %w", err)
	}

	return id, nil
}

// Login authenticates by email or display name and returns a session token.
// An identifier without "@" is treated as a display name and resolved to the
// account's email first.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, error) {
	identifier = strings.TrimSpace(identifier)

	email := strings.ToLower(identifier)
	if !strings.Contains(identifier, "@") {
		resolved, err := s.resolveDisplayName(ctx, identifier)
		if err != nil {
			return "", err
		}
		email = resolved
	}

	var id, hash string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, password_hash FROM users WHERE email = ?", email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("querying user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), prehashPassword(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	expiresAt := time.Now().Add(sessionDuration).UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)",
		token, id, expiresAt)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	return token, nil
}

// resolveDisplayName looks up the email for a display name, case-insensitively.
func (s *Service) resolveDisplayName(ctx context.Context, name string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx,
		"SELECT email FROM users WHERE lower(display_name) = lower(?)", name).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUnknownName
	}
	if err != nil {
		return "", fmt.Errorf("resolving display name: %w", err)
	}
	return email, nil
}

// ValidateSession checks if a session token is valid and returns the user ID.
func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	var userID, expiresAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE id = ?", token).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.New("invalid session")
	}
	if err != nil {
		return "", fmt.Errorf("querying session: %w", err)
	}

	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return "", fmt.Errorf("parsing expiry: %w", err)
	}

	if time.Now().UTC().After(expires) {
		_ = s.Logout(ctx, token)
		return "", errors.New("session expired")
	}

	return userID, nil
}

// Logout deletes a session.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (s *Service) CleanExpiredSessions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?",
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetUser retrieves an account by id.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, created_at FROM users WHERE id = ?", userID).
		Scan(&u.ID, &u.Email, &u.DisplayName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// GetUserByEmail retrieves an account by email. Returns nil when absent.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, created_at FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Email, &u.DisplayName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// prehashPassword hashes the password with SHA-256 before bcrypt to support
// passwords longer than bcrypt's 72-byte limit.
func prehashPassword(password string) []byte {
	h := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(h[:]))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
