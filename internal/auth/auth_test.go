package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/quillrook/songsmith/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSignUpAndLoginByEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	id, err := svc.SignUp(ctx, "ada@example.com", "correct-horse", "Ada")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if id == "" {
		t.Fatal("expected user id")
	}

	token, err := svc.Login(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	userID, err := svc.ValidateSession(ctx, token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if userID != id {
		t.Errorf("ValidateSession = %q, want %q", userID, id)
	}
}

func TestLoginByDisplayName(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "ada@example.com", "correct-horse", "Ada Lovelace"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	// Identifier without "@" resolves through the display name, any case.
	if _, err := svc.Login(ctx, "ada lovelace", "correct-horse"); err != nil {
		t.Fatalf("Login by display name: %v", err)
	}

	if _, err := svc.Login(ctx, "Grace", "correct-horse"); !errors.Is(err, ErrUnknownName) {
		t.Errorf("Login with unknown name = %v, want ErrUnknownName", err)
	}
}

func TestSignUpDuplicates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "ada@example.com", "correct-horse", "Ada"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	if _, err := svc.SignUp(ctx, "ADA@example.com", "password123", "Someone"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email = %v, want ErrEmailTaken", err)
	}
	if _, err := svc.SignUp(ctx, "other@example.com", "password123", "ada"); !errors.Is(err, ErrNameTaken) {
		t.Errorf("duplicate display name = %v, want ErrNameTaken", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "ada@example.com", "correct-horse", "Ada"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := svc.Login(ctx, "ada@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "not-an-email", "password123", "Ada"); err == nil {
		t.Error("expected error for invalid email")
	}
	if _, err := svc.SignUp(ctx, "ada@example.com", "short", "Ada"); err == nil {
		t.Error("expected error for short password")
	}
	if _, err := svc.SignUp(ctx, "ada@example.com", "password123", "  "); err == nil {
		t.Error("expected error for blank display name")
	}
}

func TestLogout(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "ada@example.com", "correct-horse", "Ada"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	token, err := svc.Login(ctx, "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, token); err == nil {
		t.Error("expected invalid session after logout")
	}
}

func TestGetUserByEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, "ada@example.com", "correct-horse", "Ada"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	u, err := svc.GetUserByEmail(ctx, "Ada@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.DisplayName != "Ada" {
		t.Errorf("GetUserByEmail = %+v, want Ada", u)
	}

	missing, err := svc.GetUserByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}
