package union

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/evcraddock/johap/internal/db"
)

func TestCreateAndGet(t *testing.T) {
	repo := testRepo(t)

	u, err := repo.Create("  Jamsil-5 ", "잠실5단지 재건축조합")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Slug != "jamsil-5" {
		t.Errorf("slug = %q, want lowercased and trimmed", u.Slug)
	}
	if u.Status != StatusActive {
		t.Errorf("status = %q, want ACTIVE", u.Status)
	}

	got, err := repo.GetBySlug("JAMSIL-5")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got.ID != u.ID || got.Name != "잠실5단지 재건축조합" {
		t.Errorf("got %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	repo := testRepo(t)

	tests := []struct {
		name    string
		slug    string
		union   string
		wantErr error
	}{
		{"reserved slug", "admin", "조합", ErrInvalidSlug},
		{"too short", "a", "조합", ErrInvalidSlug},
		{"bad chars", "jam_sil", "조합", ErrInvalidSlug},
		{"leading hyphen", "-jamsil", "조합", ErrInvalidSlug},
		{"missing name", "jamsil", " ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Create(tt.slug, tt.union)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateDuplicate(t *testing.T) {
	repo := testRepo(t)

	if _, err := repo.Create("banpo", "반포조합"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := repo.Create("banpo", "반포조합")
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestGetNotFound(t *testing.T) {
	repo := testRepo(t)

	if _, err := repo.GetBySlug("nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get by slug err = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("get by id err = %v, want ErrNotFound", err)
	}
}

func TestListAndSetStatus(t *testing.T) {
	repo := testRepo(t)

	for _, slug := range []string{"gaepo-1", "banpo", "dunchon"} {
		if _, err := repo.Create(slug, slug+" 조합"); err != nil {
			t.Fatalf("create %s: %v", slug, err)
		}
	}

	unions, err := repo.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unions) != 3 {
		t.Fatalf("got %d unions, want 3", len(unions))
	}
	if unions[0].Slug != "banpo" {
		t.Errorf("first slug = %q, want banpo (sorted)", unions[0].Slug)
	}

	if err := repo.SetStatus(unions[0].ID, StatusInactive); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := repo.GetByID(unions[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active() {
		t.Error("expected union inactive")
	}

	if err := repo.SetStatus(999, StatusActive); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := repo.SetStatus(unions[0].ID, Status("DELETED")); err == nil {
		t.Error("expected error for invalid status")
	}
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"jamsil-5", true},
		{"ab", true},
		{"a", false},
		{"Jamsil", false},
		{"jamsil-", false},
		{"api", false},
		{"잠실", false},
	}

	for _, tt := range tests {
		if got := ValidSlug(tt.slug); got != tt.want {
			t.Errorf("ValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
		}
	}
}

func testRepo(t *testing.T) *Repository {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewRepository(d)
}
