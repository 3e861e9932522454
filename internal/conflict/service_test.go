package conflict

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/evcraddock/johap/internal/db"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/ownership"
	"github.com/evcraddock/johap/internal/property"
)

const testPNU = "1171010100100010000"

func TestDetectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.unit(t, "101", "1203")
	f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
	f.holder(t, "김영희", "010-5555-5555", "", u, ownership.CoOwner)
	p := f.registrant(t, "이민호", "010-3333-3333", "", claimFor(u, "", ""))

	first, err := f.svc.Detect(ctx, p.ID)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(first.Open) != 2 {
		t.Fatalf("got %d open conflicts, want 2", len(first.Open))
	}

	if _, err := f.svc.Dismiss(ctx, first.Open[0].ID, "admin", "확인"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	second, err := f.svc.Detect(ctx, p.ID)
	if err != nil {
		t.Fatalf("detect again: %v", err)
	}
	if len(second.Open) != 1 || second.Open[0].ID != first.Open[1].ID {
		t.Errorf("open after re-detect = %v, want only %d", ids(second.Open), first.Open[1].ID)
	}

	all, err := f.svc.List(ctx, f.unionID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d conflicts in total, want 2", len(all))
	}
}

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("clear grants owner", func(t *testing.T) {
		f := newFixture(t)
		u := f.unit(t, "101", "1203")
		p := f.registrant(t, "박민수", "010-2222-2222", "", claimFor(u, "", ""))

		got, err := f.svc.Approve(ctx, p.ID, "admin", false)
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		if got.Ownership == nil || got.Ownership.Type != ownership.Owner {
			t.Fatalf("ownership = %+v, want OWNER", got.Ownership)
		}
		f.wantStatus(t, p.ID, member.StatusApproved)
		f.wantEvents(t, u.ID, ownership.Acquired)
	})

	t.Run("no unit requires allow unmatched", func(t *testing.T) {
		f := newFixture(t)
		p := f.registrant(t, "박민수", "010-2222-2222", "", claimFor(nil, "999", "1"))

		if _, err := f.svc.Approve(ctx, p.ID, "admin", false); !errors.Is(err, ErrNoUnit) {
			t.Fatalf("err = %v, want ErrNoUnit", err)
		}
		f.wantStatus(t, p.ID, member.StatusPendingApproval)

		got, err := f.svc.Approve(ctx, p.ID, "admin", true)
		if err != nil {
			t.Fatalf("approve unmatched: %v", err)
		}
		if got.Ownership != nil {
			t.Errorf("ownership = %+v, want none", got.Ownership)
		}
		f.wantStatus(t, p.ID, member.StatusApproved)
	})

	t.Run("open conflicts block and are recorded", func(t *testing.T) {
		f := newFixture(t)
		u := f.unit(t, "101", "1203")
		f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
		p := f.registrant(t, "이영희", "010-3333-3333", "", claimFor(u, "", ""))

		if _, err := f.svc.Approve(ctx, p.ID, "admin", true); !errors.Is(err, ErrOpenConflicts) {
			t.Fatalf("err = %v, want ErrOpenConflicts", err)
		}
		f.wantStatus(t, p.ID, member.StatusPendingApproval)

		open, err := f.svc.List(ctx, f.unionID, StatusOpen)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(open) != 1 || open[0].PendingUserID != p.ID {
			t.Errorf("open conflicts = %v, want one for %s", ids(open), p.ID)
		}
	})

	t.Run("not pending", func(t *testing.T) {
		f := newFixture(t)
		u := f.unit(t, "101", "1203")
		owner := f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)

		if _, err := f.svc.Approve(ctx, owner.ID, "admin", false); !errors.Is(err, ErrNotPending) {
			t.Fatalf("err = %v, want ErrNotPending", err)
		}
	})
}

func TestResolveAddCoOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.unit(t, "101", "1203")
	f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
	p := f.registrant(t, "이영희", "010-3333-3333", "", claimFor(u, "", ""))
	c := f.detectOne(t, p.ID)

	res, err := f.svc.Resolve(ctx, c.ID, ActionAddCoOwner, ResolveInput{ActorID: "admin", Note: "공동명의"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !res.Approved {
		t.Error("expected registrant to be approved")
	}
	if res.Conflict.Status != StatusResolved || res.Conflict.Action != ActionAddCoOwner {
		t.Errorf("conflict = %s/%s, want RESOLVED/ADD_CO_OWNER", res.Conflict.Status, res.Conflict.Action)
	}
	if res.Conflict.ResolvedBy != "admin" || res.Conflict.ResolvedAt == nil || res.Conflict.Note != "공동명의" {
		t.Errorf("resolution metadata = %+v", res.Conflict)
	}

	f.wantStatus(t, p.ID, member.StatusApproved)
	f.wantHolding(t, u.ID, p.ID, ownership.CoOwner)
	f.wantEvents(t, u.ID, ownership.CoOwnerAdded, ownership.Acquired)
}

func TestResolveTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.unit(t, "101", "1203")
	seller := f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
	buyer := f.registrant(t, "이영희", "010-3333-3333", "", claimFor(u, "", ""))
	other := f.registrant(t, "박민수", "010-2222-2222", "", claimFor(u, "", ""))

	c := f.detectOne(t, buyer.ID)
	otherConflict := f.detectOne(t, other.ID)

	res, err := f.svc.Resolve(ctx, c.ID, ActionTransfer, ResolveInput{ActorID: "admin", Note: "매매"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if !res.Approved {
		t.Error("expected buyer to be approved")
	}
	if diff := cmp.Diff([]int64{otherConflict.ID}, res.Dismissed); diff != "" {
		t.Errorf("dismissed mismatch (-want +got):\n%s", diff)
	}

	held, err := f.owners.ActiveByUser(seller.ID)
	if err != nil {
		t.Fatalf("seller holdings: %v", err)
	}
	if len(held) != 0 {
		t.Errorf("seller still holds %d units", len(held))
	}
	f.wantHolding(t, u.ID, buyer.ID, ownership.Owner)
	f.wantEvents(t, u.ID, ownership.Acquired, ownership.TransferredOut, ownership.Acquired)

	got, err := f.svc.Get(ctx, otherConflict.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusDismissed {
		t.Errorf("other conflict status = %s, want DISMISSED", got.Status)
	}
}

func TestResolveLinkFamilyWaitsForAllConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.unit(t, "101", "1203")
	f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
	f.holder(t, "김영희", "010-5555-5555", "", u, ownership.CoOwner)
	p := f.registrant(t, "김민수", "010-3333-3333", "", claimFor(u, "", ""))

	det, err := f.svc.Detect(ctx, p.ID)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(det.Open) != 2 {
		t.Fatalf("got %d open conflicts, want 2", len(det.Open))
	}

	first, err := f.svc.Resolve(ctx, det.Open[0].ID, ActionLinkFamily, ResolveInput{ActorID: "admin"})
	if err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	if first.Approved {
		t.Error("approved while a conflict is still open")
	}
	f.wantStatus(t, p.ID, member.StatusPendingApproval)
	f.wantHolding(t, u.ID, p.ID, ownership.Family)

	if _, err := f.svc.Dismiss(ctx, det.Open[1].ID, "admin", "가족 확인"); err != nil {
		t.Fatalf("dismiss second: %v", err)
	}

	// Nothing is left open, so approval goes through without a new holding.
	got, err := f.svc.Approve(ctx, p.ID, "admin", false)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Ownership != nil {
		t.Errorf("ownership = %+v, want none", got.Ownership)
	}
	f.wantStatus(t, p.ID, member.StatusApproved)
}

func TestResolveSecondGrantOnSharedUnit(t *testing.T) {
	tests := []struct {
		name       string
		second     Action
		wantType   ownership.Type
		wantEvents []ownership.Event
	}{
		{
			name:     "add co-owner keeps the holding",
			second:   ActionAddCoOwner,
			wantType: ownership.CoOwner,
			wantEvents: []ownership.Event{
				ownership.CoOwnerAdded, ownership.CoOwnerAdded, ownership.Acquired, ownership.Acquired,
			},
		},
		{
			name:     "transfer upgrades to owner",
			second:   ActionTransfer,
			wantType: ownership.Owner,
			wantEvents: []ownership.Event{
				ownership.Acquired, ownership.TransferredOut, ownership.CoOwnerAdded, ownership.Acquired, ownership.Acquired,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			u := f.unit(t, "101", "1203")
			owner := f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
			coOwner := f.holder(t, "김영희", "010-5555-5555", "", u, ownership.CoOwner)
			p := f.registrant(t, "이민호", "010-3333-3333", "", claimFor(u, "", ""))

			det, err := f.svc.Detect(ctx, p.ID)
			if err != nil {
				t.Fatalf("detect: %v", err)
			}
			if len(det.Open) != 2 {
				t.Fatalf("got %d open conflicts, want 2", len(det.Open))
			}
			vsOwner, vsCoOwner := det.Open[0], det.Open[1]
			if vsOwner.ExistingUserID != owner.ID {
				vsOwner, vsCoOwner = vsCoOwner, vsOwner
			}

			first, err := f.svc.Resolve(ctx, vsOwner.ID, ActionAddCoOwner, ResolveInput{ActorID: "admin"})
			if err != nil {
				t.Fatalf("resolve first: %v", err)
			}
			if first.Approved {
				t.Error("approved while a conflict is still open")
			}

			second, err := f.svc.Resolve(ctx, vsCoOwner.ID, tt.second, ResolveInput{ActorID: "admin"})
			if err != nil {
				t.Fatalf("resolve second: %v", err)
			}
			if !second.Approved {
				t.Error("expected registrant to be approved")
			}
			if second.Conflict.Status != StatusResolved || second.Conflict.Action != tt.second {
				t.Errorf("conflict = %s/%s, want RESOLVED/%s", second.Conflict.Status, second.Conflict.Action, tt.second)
			}

			f.wantStatus(t, p.ID, member.StatusApproved)
			f.wantHolding(t, u.ID, p.ID, tt.wantType)
			f.wantEvents(t, u.ID, tt.wantEvents...)

			held, err := f.owners.ActiveByUser(p.ID)
			if err != nil {
				t.Fatalf("registrant holdings: %v", err)
			}
			if len(held) != 1 {
				t.Errorf("registrant has %d active holdings, want 1", len(held))
			}

			if tt.second == ActionTransfer {
				gone, err := f.owners.ActiveByUser(coOwner.ID)
				if err != nil {
					t.Fatalf("co-owner holdings: %v", err)
				}
				if len(gone) != 0 {
					t.Errorf("transferred-out holder still holds %d units", len(gone))
				}
			}
		})
	}
}

func TestResolveMergeAfterGrantOnSameUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.unit(t, "101", "1203")
	owner := f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
	existing := f.holder(t, "김영희", "010-5555-5555", "", u, ownership.CoOwner)
	p := f.registrant(t, "김영희", "01055555555", "", claimFor(u, "", ""))

	det, err := f.svc.Detect(ctx, p.ID)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(det.Open) != 2 {
		t.Fatalf("got %d open conflicts, want 2", len(det.Open))
	}
	vsOwner, dup := det.Open[0], det.Open[1]
	if vsOwner.ExistingUserID != owner.ID {
		vsOwner, dup = dup, vsOwner
	}

	if _, err := f.svc.Resolve(ctx, vsOwner.ID, ActionLinkFamily, ResolveInput{ActorID: "admin"}); err != nil {
		t.Fatalf("resolve first: %v", err)
	}
	if _, err := f.svc.Resolve(ctx, dup.ID, ActionMerge, ResolveInput{ActorID: "admin", Note: "동일인"}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// The registrant's FAMILY holding ends; the existing member keeps theirs.
	f.wantHolding(t, u.ID, existing.ID, ownership.CoOwner)
	active, err := f.owners.ActiveByUnit(u.ID)
	if err != nil {
		t.Fatalf("active by unit: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("unit has %d active holdings, want 2", len(active))
	}

	var ended int
	if err := f.d.QueryRow(
		`SELECT COUNT(*) FROM ownerships
		WHERE property_unit_id = ? AND user_id = ? AND ownership_type = 'FAMILY' AND is_active = 0`,
		u.ID, existing.ID,
	).Scan(&ended); err != nil {
		t.Fatalf("count ended: %v", err)
	}
	if ended != 1 {
		t.Errorf("ended FAMILY holdings under existing member = %d, want 1", ended)
	}

	f.wantEvents(t, u.ID, ownership.Merged, ownership.FamilyLinked, ownership.Acquired, ownership.Acquired)
}

func TestResolveMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.unit(t, "101", "1203")
	u2 := f.unit(t, "101", "1204")
	existing := f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
	f.holder(t, "최지우", "010-7777-7777", "", u2, ownership.Owner)

	pending := f.registrant(t, "김철수", "01012345678", "", claimFor(u, "", ""))
	pendingAuth, err := f.members.AuthUserIDs(pending.ID)
	if err != nil {
		t.Fatalf("auth ids: %v", err)
	}

	c := f.detectOne(t, pending.ID)
	if c.Kind != KindDuplicate {
		t.Fatalf("kind = %s, want DUPLICATE", c.Kind)
	}

	// A second conflict for the same registrant on another unit.
	if err := NewRepository(f.d).Open(f.unionID, u2.ID, pending.ID, f.holderOf(t, u2.ID), KindOwnership); err != nil {
		t.Fatalf("open second: %v", err)
	}
	second := f.openFor(t, pending.ID)[1]

	res, err := f.svc.Resolve(ctx, c.ID, ActionMerge, ResolveInput{ActorID: "admin", Note: "동일인"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if res.Approved {
		t.Error("merge should not report approval")
	}
	if diff := cmp.Diff([]int64{second.ID}, res.Dismissed); diff != "" {
		t.Errorf("dismissed mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.members.GetByID(pending.ID); !errors.Is(err, member.ErrNotFound) {
		t.Errorf("pending profile err = %v, want ErrNotFound", err)
	}

	links, err := f.members.AuthUserIDs(existing.ID)
	if err != nil {
		t.Fatalf("auth ids: %v", err)
	}
	for _, id := range pendingAuth {
		found := false
		for _, l := range links {
			if l == id {
				found = true
			}
		}
		if !found {
			t.Errorf("auth user %s not moved to existing profile", id)
		}
	}

	f.wantEvents(t, u.ID, ownership.Merged, ownership.Acquired)
}

func TestResolveReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.unit(t, "101", "1203")
	f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
	f.holder(t, "김영희", "010-5555-5555", "", u, ownership.CoOwner)
	p := f.registrant(t, "이민호", "010-3333-3333", "", claimFor(u, "", ""))

	det, err := f.svc.Detect(ctx, p.ID)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	if _, err := f.svc.Resolve(ctx, det.Open[0].ID, ActionReject, ResolveInput{ActorID: "admin"}); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("err = %v, want ErrReasonRequired", err)
	}

	res, err := f.svc.Resolve(ctx, det.Open[0].ID, ActionReject, ResolveInput{ActorID: "admin", Reason: "소유 증빙 없음"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Approved {
		t.Error("reject should not approve")
	}
	if res.Conflict.Note != "소유 증빙 없음" {
		t.Errorf("note = %q, want the reason", res.Conflict.Note)
	}
	if diff := cmp.Diff([]int64{det.Open[1].ID}, res.Dismissed); diff != "" {
		t.Errorf("dismissed mismatch (-want +got):\n%s", diff)
	}

	got, err := f.members.GetByID(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != member.StatusRejected || got.RejectedReason != "소유 증빙 없음" {
		t.Errorf("got status %s reason %q", got.Status, got.RejectedReason)
	}
}

func TestResolvePreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown action", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.Resolve(ctx, 1, Action("SPLIT"), ResolveInput{}); !errors.Is(err, ErrUnknownAction) {
			t.Errorf("err = %v, want ErrUnknownAction", err)
		}
	})

	t.Run("missing conflict", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.Resolve(ctx, 42, ActionAddCoOwner, ResolveInput{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("closed conflict", func(t *testing.T) {
		f := newFixture(t)
		u := f.unit(t, "101", "1203")
		f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
		p := f.registrant(t, "이영희", "010-3333-3333", "", claimFor(u, "", ""))
		c := f.detectOne(t, p.ID)

		if _, err := f.svc.Dismiss(ctx, c.ID, "admin", ""); err != nil {
			t.Fatalf("dismiss: %v", err)
		}
		if _, err := f.svc.Resolve(ctx, c.ID, ActionAddCoOwner, ResolveInput{}); !errors.Is(err, ErrConflictClosed) {
			t.Errorf("resolve err = %v, want ErrConflictClosed", err)
		}
		if _, err := f.svc.Dismiss(ctx, c.ID, "admin", ""); !errors.Is(err, ErrConflictClosed) {
			t.Errorf("dismiss err = %v, want ErrConflictClosed", err)
		}
	})

	t.Run("registrant no longer pending", func(t *testing.T) {
		f := newFixture(t)
		u := f.unit(t, "101", "1203")
		f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
		p := f.registrant(t, "이영희", "010-3333-3333", "", claimFor(u, "", ""))
		c := f.detectOne(t, p.ID)

		if err := f.members.Reject(p.ID, "중복 신청"); err != nil {
			t.Fatalf("reject: %v", err)
		}
		if _, err := f.svc.Resolve(ctx, c.ID, ActionAddCoOwner, ResolveInput{}); !errors.Is(err, ErrNotPending) {
			t.Errorf("err = %v, want ErrNotPending", err)
		}
	})

	t.Run("existing holding ended", func(t *testing.T) {
		f := newFixture(t)
		u := f.unit(t, "101", "1203")
		f.holder(t, "김철수", "010-1234-5678", "", u, ownership.Owner)
		p := f.registrant(t, "이영희", "010-3333-3333", "", claimFor(u, "", ""))
		c := f.detectOne(t, p.ID)

		holdings, err := f.owners.ActiveByUnit(u.ID)
		if err != nil {
			t.Fatalf("holdings: %v", err)
		}
		if err := f.owners.End(holdings[0].ID); err != nil {
			t.Fatalf("end: %v", err)
		}

		for _, a := range []Action{ActionAddCoOwner, ActionTransfer, ActionLinkFamily} {
			if _, err := f.svc.Resolve(ctx, c.ID, a, ResolveInput{}); !errors.Is(err, ErrStale) {
				t.Errorf("%s err = %v, want ErrStale", a, err)
			}
		}

		// A failed resolution leaves nothing behind.
		got, err := f.svc.Get(ctx, c.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != StatusOpen {
			t.Errorf("status = %s, want OPEN", got.Status)
		}
	})
}

type fixture struct {
	d       *sql.DB
	svc     *Service
	unionID int64
	members *member.Repository
	owners  *ownership.Repository
	units   *property.Repository
	seq     *int
}

func newFixture(t *testing.T) fixture {
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

	res, err := d.Exec("INSERT INTO unions (slug, name) VALUES ('jamsil', '잠실 조합')")
	if err != nil {
		t.Fatalf("insert union: %v", err)
	}
	unionID, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("union id: %v", err)
	}

	return fixture{
		d:       d,
		svc:     NewService(d),
		unionID: unionID,
		members: member.NewRepository(d),
		owners:  ownership.NewRepository(d),
		units:   property.NewRepository(d),
		seq:     new(int),
	}
}

func (f fixture) unit(t *testing.T, dong, ho string) *property.Unit {
	t.Helper()
	u, err := f.units.Insert(&property.Unit{
		UnionID: f.unionID, PNU: testPNU, Dong: dong, Ho: ho, Address: "서울특별시 송파구 잠실동 1",
	})
	if err != nil {
		t.Fatalf("insert unit: %v", err)
	}
	return u
}

// registrant creates a profile pending approval.
func (f fixture) registrant(t *testing.T, name, phone, birth string, claim member.Claim) *member.Profile {
	t.Helper()
	*f.seq++
	authID := fmt.Sprintf("auth-%d", *f.seq)
	if _, err := f.d.Exec("INSERT INTO auth_users (id) VALUES (?)", authID); err != nil {
		t.Fatalf("insert auth user: %v", err)
	}
	p, err := f.members.Register(context.Background(), authID, f.unionID, member.Input{
		Name: name, Phone: phone, BirthDate: birth, Claim: claim,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if p.Status != member.StatusPendingApproval {
		t.Fatalf("registrant status = %s, want PENDING_APPROVAL", p.Status)
	}
	return p
}

// holder creates an approved member holding u.
func (f fixture) holder(t *testing.T, name, phone, birth string, u *property.Unit, typ ownership.Type) *member.Profile {
	t.Helper()
	p := f.registrant(t, name, phone, birth, claimFor(u, "", ""))
	if err := f.members.Approve(p.ID); err != nil {
		t.Fatalf("approve holder: %v", err)
	}
	if _, err := f.owners.Grant(u.ID, p.ID, typ); err != nil {
		t.Fatalf("grant holder: %v", err)
	}
	if err := f.owners.Record(u.ID, p.ID, ownership.Acquired, ""); err != nil {
		t.Fatalf("record holder: %v", err)
	}
	return p
}

func (f fixture) holderOf(t *testing.T, unitID int64) string {
	t.Helper()
	holdings, err := f.owners.ActiveByUnit(unitID)
	if err != nil || len(holdings) == 0 {
		t.Fatalf("holder of unit %d: %v", unitID, err)
	}
	return holdings[0].UserID
}

func (f fixture) detectOne(t *testing.T, userID string) *Conflict {
	t.Helper()
	det, err := f.svc.Detect(context.Background(), userID)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(det.Open) != 1 {
		t.Fatalf("got %d open conflicts, want 1", len(det.Open))
	}
	return det.Open[0]
}

func (f fixture) openFor(t *testing.T, userID string) []*Conflict {
	t.Helper()
	open, err := NewRepository(f.d).OpenForPending(userID)
	if err != nil {
		t.Fatalf("open for pending: %v", err)
	}
	return open
}

func (f fixture) wantStatus(t *testing.T, userID string, want member.Status) {
	t.Helper()
	p, err := f.members.GetByID(userID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if p.Status != want {
		t.Errorf("status = %s, want %s", p.Status, want)
	}
}

func (f fixture) wantHolding(t *testing.T, unitID int64, userID string, want ownership.Type) {
	t.Helper()
	holdings, err := f.owners.ActiveByUnit(unitID)
	if err != nil {
		t.Fatalf("holdings: %v", err)
	}
	for _, h := range holdings {
		if h.UserID == userID {
			if h.Type != want {
				t.Errorf("holding type = %s, want %s", h.Type, want)
			}
			return
		}
	}
	t.Errorf("%s holds nothing on unit %d", userID, unitID)
}

// wantEvents checks a unit's history, newest first.
func (f fixture) wantEvents(t *testing.T, unitID int64, want ...ownership.Event) {
	t.Helper()
	records, err := f.owners.Events(unitID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var got []ownership.Event
	for _, r := range records {
		got = append(got, r.Event)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func claimFor(u *property.Unit, dong, ho string) member.Claim {
	if u == nil {
		return member.Claim{PNU: testPNU, Dong: dong, Ho: ho}
	}
	return member.Claim{PNU: u.PNU, Dong: u.Dong, Ho: u.Ho}
}

func ids(cs []*Conflict) []int64 {
	out := make([]int64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
