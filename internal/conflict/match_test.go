package conflict

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/unicode/norm"

	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/ownership"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"김철수", "김철수"},
		{" 김 철수 ", "김철수"},
		{norm.NFD.String("김철수"), "김철수"},
		{"Kim CheolSu", "kimcheolsu"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPhoneDigits(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"010-1234-5678", "01012345678"},
		{"010 1234 5678", "01012345678"},
		{"+82 10-1234-5678", "01012345678"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PhoneDigits(tt.in); got != tt.want {
			t.Errorf("PhoneDigits(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSamePerson(t *testing.T) {
	base := &member.Profile{Name: "김철수", Phone: "010-1234-5678", BirthDate: "1970-01-01"}

	tests := []struct {
		name  string
		other *member.Profile
		want  bool
	}{
		{"same name and phone", &member.Profile{Name: "김 철수", Phone: "01012345678"}, true},
		{"same name and birth date", &member.Profile{Name: "김철수", Phone: "010-9999-9999", BirthDate: "1970-01-01"}, true},
		{"same name only", &member.Profile{Name: "김철수", Phone: "010-9999-9999", BirthDate: "1980-01-01"}, false},
		{"different name", &member.Profile{Name: "이영희", Phone: "010-1234-5678", BirthDate: "1970-01-01"}, false},
		{"same name, both phones and dates blank", &member.Profile{Name: "김철수"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SamePerson(base, tt.other); got != tt.want {
				t.Errorf("SamePerson = %v, want %v", got, tt.want)
			}
		})
	}

	blank := &member.Profile{Name: "김철수"}
	if SamePerson(blank, &member.Profile{Name: "김철수"}) {
		t.Error("profiles with only a name should not match")
	}
}

func TestMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := NewMatcher(f.d)

	held := f.unit(t, "101", "1203")
	empty := f.unit(t, "101", "1204")
	owner := f.holder(t, "김철수", "010-1234-5678", "1970-01-01", held, ownership.Owner)

	tests := []struct {
		name        string
		profile     *member.Profile
		wantOutcome Outcome
		wantKinds   []Kind
	}{
		{
			name:        "unregistered unit",
			profile:     f.registrant(t, "박민수", "010-2222-2222", "", claimFor(nil, "102", "1")),
			wantOutcome: OutcomeNoUnit,
		},
		{
			name:        "unit without holders",
			profile:     f.registrant(t, "박민수", "010-2222-2222", "", claimFor(empty, "", "")),
			wantOutcome: OutcomeClear,
		},
		{
			name:        "unit held by someone else",
			profile:     f.registrant(t, "이영희", "010-3333-3333", "", claimFor(held, "", "")),
			wantOutcome: OutcomeConflict,
			wantKinds:   []Kind{KindOwnership},
		},
		{
			name:        "unit held by the same person",
			profile:     f.registrant(t, "김철수", "01012345678", "", claimFor(held, "", "")),
			wantOutcome: OutcomeConflict,
			wantKinds:   []Kind{KindDuplicate},
		},
		{
			name: "located by address with suffixed dong and ho",
			profile: f.registrant(t, "이영희", "010-3333-3333", "", member.Claim{
				Address: "  서울특별시 송파구  잠실동 1", Dong: "101동", Ho: "1203호",
			}),
			wantOutcome: OutcomeConflict,
			wantKinds:   []Kind{KindOwnership},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(ctx, tt.profile)
			if err != nil {
				t.Fatalf("match: %v", err)
			}
			if got.Outcome != tt.wantOutcome {
				t.Fatalf("outcome = %s, want %s", got.Outcome, tt.wantOutcome)
			}
			if len(got.Candidates) != len(tt.wantKinds) {
				t.Fatalf("got %d candidates, want %d", len(got.Candidates), len(tt.wantKinds))
			}
			for i, k := range tt.wantKinds {
				if got.Candidates[i].Kind != k {
					t.Errorf("candidate %d kind = %s, want %s", i, got.Candidates[i].Kind, k)
				}
				if got.Candidates[i].Existing.ID != owner.ID {
					t.Errorf("candidate %d existing = %s, want %s", i, got.Candidates[i].Existing.ID, owner.ID)
				}
			}
		})
	}
}

func TestMatchRequiresPending(t *testing.T) {
	f := newFixture(t)
	held := f.unit(t, "101", "1203")
	owner := f.holder(t, "김철수", "010-1234-5678", "", held, ownership.Owner)

	_, err := NewMatcher(f.d).Match(context.Background(), owner)
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("err = %v, want ErrNotPending", err)
	}
}

func TestMatchSkipsOwnHolding(t *testing.T) {
	f := newFixture(t)
	u := f.unit(t, "101", "1203")
	p := f.registrant(t, "박민수", "010-2222-2222", "", claimFor(u, "", ""))

	if _, err := f.owners.Grant(u.ID, p.ID, ownership.Owner); err != nil {
		t.Fatalf("grant: %v", err)
	}

	got, err := NewMatcher(f.d).Match(context.Background(), p)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if got.Outcome != OutcomeClear {
		t.Errorf("outcome = %s, want CLEAR", got.Outcome)
	}
}
