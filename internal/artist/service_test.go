package artist

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/quillrook/songsmith/internal/database"
)

const testUser = "user-1"

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	seedUser(t, db, testUser)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, 'x', ?, ?)
	`, id, id+"@example.com", id, now, now)
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}

func TestCreateTrimsAndStores(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	a, err := svc.Create(ctx, testUser, "  The Band  ", "  jangly indie rock  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Name != "The Band" {
		t.Errorf("Name = %q, want trimmed %q", a.Name, "The Band")
	}
	if a.Style != "jangly indie rock" {
		t.Errorf("Style = %q, want trimmed", a.Style)
	}
	if a.ID == "" {
		t.Error("expected generated id")
	}
}

func TestCreateRejectsEmptyFields(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, testUser, "   ", "style"); !errors.Is(err, ErrEmptyField) {
		t.Errorf("blank name = %v, want ErrEmptyField", err)
	}
	if _, err := svc.Create(ctx, testUser, "Name", " "); !errors.Is(err, ErrEmptyField) {
		t.Errorf("blank style = %v, want ErrEmptyField", err)
	}
}

func TestCreateRejectsCaseInsensitiveDuplicate(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, testUser, "The Band", "rock"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// " The Band " and "the band" both collide with "The Band".
	if _, err := svc.Create(ctx, testUser, " The Band ", "pop"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("padded duplicate = %v, want ErrDuplicateName", err)
	}
	if _, err := svc.Create(ctx, testUser, "the band", "pop"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("lowercase duplicate = %v, want ErrDuplicateName", err)
	}

	// A non-colliding name is accepted.
	if _, err := svc.Create(ctx, testUser, "The Other Band", "pop"); err != nil {
		t.Errorf("non-colliding name rejected: %v", err)
	}
}

func TestDuplicateCheckIsPerUser(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "user-2")
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, testUser, "The Band", "rock"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "user-2", "The Band", "rock"); err != nil {
		t.Errorf("same name for another user rejected: %v", err)
	}
}

func TestUpdateExcludesSelfFromDuplicateCheck(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	a, err := svc.Create(ctx, testUser, "The Band", "rock")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := svc.Create(ctx, testUser, "Other", "pop")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Renaming to its own name (different case) is fine.
	if _, err := svc.Update(ctx, testUser, a.ID, "THE BAND", "heavier rock"); err != nil {
		t.Errorf("self-rename rejected: %v", err)
	}

	// Renaming onto another artist's name is not.
	if _, err := svc.Update(ctx, testUser, b.ID, "the band", "pop"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("rename onto existing = %v, want ErrDuplicateName", err)
	}
}

func TestDeleteCascadesHistory(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	a, err := svc.Create(ctx, testUser, "Doomed", "sludge")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	keep, err := svc.Create(ctx, testUser, "Keeper", "folk")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range []string{a.ID, keep.ID} {
		if _, err := db.Exec(`
			INSERT INTO history (user_id, artist_id, titles, themes, lyrics, created_at, updated_at)
			VALUES (?, ?, '["t"]', '[]', '[]', ?, ?)
		`, testUser, id, now, now); err != nil {
			t.Fatalf("seeding history: %v", err)
		}
	}

	if err := svc.Delete(ctx, testUser, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM history WHERE artist_id = ?", a.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("expected deleted artist's history entry to be removed")
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM history WHERE artist_id = ?", keep.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Error("expected other artists' history to be untouched")
	}
}

func TestDeleteMissing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)

	if err := svc.Delete(context.Background(), testUser, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing = %v, want ErrNotFound", err)
	}
}

func TestImportMergeUpdatesAndAdds(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Create(ctx, testUser, "A", "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// First record matches with an identical style (no count); the second
	// matches case-insensitively with a new style, so the later entry wins
	// and is reported as an update.
	res, err := svc.ImportMerge(ctx, testUser, []ImportRecord{
		{Name: "A", Style: "s1"},
		{Name: "a", Style: "s2"},
		{Name: "Brand New", Style: "s3"},
		{Name: "   ", Style: "dropped"},
	})
	if err != nil {
		t.Fatalf("ImportMerge: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("Added = %d, want 1", res.Added)
	}
	if res.Updated != 1 {
		t.Errorf("Updated = %d, want 1", res.Updated)
	}

	artists, err := svc.List(ctx, testUser)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(artists) != 2 {
		t.Fatalf("roster size = %d, want 2", len(artists))
	}

	var a *Artist
	for i := range artists {
		if artists[i].Name == "A" {
			a = &artists[i]
		}
	}
	if a == nil {
		t.Fatal("expected exactly one artist named A")
	}
	if a.Style != "s2" {
		t.Errorf("Style = %q, want s2 (later entry wins)", a.Style)
	}
}

func TestListOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, name := range []string{"First", "Second", "Third"} {
		if _, err := svc.Create(ctx, testUser, name, "style"); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	artists, err := svc.List(ctx, testUser)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(artists) != 3 {
		t.Fatalf("len = %d, want 3", len(artists))
	}
}
