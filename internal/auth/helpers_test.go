package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/evcraddock/johap/internal/db"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/union"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return d
}

func createAuthUser(t *testing.T, d *sql.DB, email string) string {
	t.Helper()
	u, err := NewAuthUserStore(d, "").Upsert(context.Background(), ProviderEmail, email, email, "")
	if err != nil {
		t.Fatalf("create auth user: %v", err)
	}
	return u.ID
}

func createUnion(t *testing.T, d *sql.DB, slug string, status union.Status) *union.Union {
	t.Helper()
	repo := union.NewRepository(d)
	u, err := repo.Create(slug, "테스트조합")
	if err != nil {
		t.Fatalf("create union: %v", err)
	}
	if status != union.StatusActive {
		if err := repo.SetStatus(u.ID, status); err != nil {
			t.Fatalf("set union status: %v", err)
		}
		u.Status = status
	}
	return u
}

var completeInput = member.Input{
	Name:  "홍길동",
	Phone: "010-1234-5678",
	Claim: member.Claim{Address: "서울특별시 용산구 한강로1가 1", Dong: "101", Ho: "1203"},
}

// createProfile registers authUserID in the union and moves the profile to
// status with role.
func createProfile(t *testing.T, d *sql.DB, authUserID string, unionID int64, status member.Status, role member.Role) *member.Profile {
	t.Helper()
	repo := member.NewRepository(d)

	in := completeInput
	if status == member.StatusPendingProfile {
		in = member.Input{}
	}
	p, err := repo.Register(context.Background(), authUserID, unionID, in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	switch status {
	case member.StatusApproved:
		if err := repo.Approve(p.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
	case member.StatusRejected:
		if err := repo.Reject(p.ID, "서류 미비"); err != nil {
			t.Fatalf("reject: %v", err)
		}
	}
	if role == member.RoleAdmin {
		if err := repo.SetRole(p.ID, role); err != nil {
			t.Fatalf("set role: %v", err)
		}
	}

	p, err = repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return p
}

func createSystemAdmin(t *testing.T, d *sql.DB, authUserID string) {
	t.Helper()
	if _, err := member.NewRepository(d).EnsureSystemAdmin(context.Background(), authUserID, "관리자"); err != nil {
		t.Fatalf("ensure system admin: %v", err)
	}
}

// sessionCookie creates a session for authUserID and returns its cookie.
func sessionCookie(t *testing.T, store *SessionStore, authUserID string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	if err := store.Create(w, authUserID); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return findCookie(t, w, cookieName)
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("expected cookie named %q", name)
	return nil
}

func intPtr(n int) *int { return &n }
