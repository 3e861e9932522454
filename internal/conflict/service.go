package conflict

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evcraddock/johap/internal/db"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/ownership"
)

// Service runs detection, approval and resolution. Every mutation runs in
// a single transaction.
type Service struct {
	db *sql.DB
}

// NewService creates a conflict service.
func NewService(d *sql.DB) *Service {
	return &Service{db: d}
}

// txRepos bundles repositories bound to one transaction.
type txRepos struct {
	members   *member.Repository
	owners    *ownership.Repository
	conflicts *Repository
	matcher   *Matcher
}

func reposFor(tx *sql.Tx) txRepos {
	return txRepos{
		members:   member.NewRepository(tx),
		owners:    ownership.NewRepository(tx),
		conflicts: NewRepository(tx),
		matcher:   NewMatcher(tx),
	}
}

// Get returns a conflict by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Conflict, error) {
	return NewRepository(s.db).Get(id)
}

// List returns a union's conflicts filtered by status.
func (s *Service) List(ctx context.Context, unionID int64, status Status) ([]*Conflict, error) {
	return NewRepository(s.db).List(unionID, status)
}

// Match runs matching without persisting anything.
func (s *Service) Match(ctx context.Context, userID string) (*Match, error) {
	p, err := member.NewRepository(s.db).GetByID(userID)
	if err != nil {
		return nil, err
	}
	return NewMatcher(s.db).Match(ctx, p)
}

// Detect matches a registrant and records a conflict for every candidate.
// Conflicts that were already closed stay closed.
func (s *Service) Detect(ctx context.Context, userID string) (*Detection, error) {
	var det *Detection
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		det, err = detect(ctx, reposFor(tx), userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return det, nil
}

func detect(ctx context.Context, r txRepos, userID string) (*Detection, error) {
	p, err := r.members.GetByID(userID)
	if err != nil {
		return nil, err
	}
	m, err := r.matcher.Match(ctx, p)
	if err != nil {
		return nil, err
	}

	for _, c := range m.Candidates {
		if err := r.conflicts.Open(*p.UnionID, m.Unit.ID, p.ID, c.Existing.ID, c.Kind); err != nil {
			return nil, err
		}
	}

	open, err := r.conflicts.OpenForPending(p.ID)
	if err != nil {
		return nil, err
	}
	return &Detection{Match: m, Open: open}, nil
}

// Approve approves a registrant. A clear match grants them OWNER of the
// unit. A registrant whose unit is not registered is approved without a
// holding only when allowUnmatched is set. Open conflicts block approval;
// detection is committed before the check so they are visible to admins.
func (s *Service) Approve(ctx context.Context, userID, actorID string, allowUnmatched bool) (*Approval, error) {
	if _, err := s.Detect(ctx, userID); err != nil {
		return nil, err
	}

	var out *Approval
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		r := reposFor(tx)

		det, err := detect(ctx, r, userID)
		if err != nil {
			return err
		}
		m := det.Match
		out = &Approval{Match: m}

		switch m.Outcome {
		case OutcomeNoUnit:
			if !allowUnmatched {
				return ErrNoUnit
			}
		case OutcomeClear:
			o, err := r.owners.Ensure(m.Unit.ID, userID, ownership.Owner)
			if err != nil {
				return err
			}
			if err := r.owners.Record(m.Unit.ID, userID, ownership.Acquired, ""); err != nil {
				return err
			}
			out.Ownership = o
		case OutcomeConflict:
			if len(det.Open) > 0 {
				return fmt.Errorf("%w: %d open", ErrOpenConflicts, len(det.Open))
			}
		}

		return r.members.Approve(userID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("member approved", "user_id", userID, "actor", actorID, "outcome", out.Match.Outcome)
	return out, nil
}

// Resolve applies an action to an OPEN conflict. The registrant is approved
// once a granting action leaves them with no OPEN conflicts.
func (s *Service) Resolve(ctx context.Context, id int64, action Action, in ResolveInput) (*Resolution, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if action == ActionReject && in.Reason == "" {
		return nil, ErrReasonRequired
	}

	out := &Resolution{Dismissed: []int64{}}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		r := reposFor(tx)

		c, err := r.conflicts.Get(id)
		if err != nil {
			return err
		}
		if c.Status != StatusOpen {
			return fmt.Errorf("%w: %d is %s", ErrConflictClosed, id, c.Status)
		}

		pending, err := r.members.GetByID(c.PendingUserID)
		if errors.Is(err, member.ErrNotFound) {
			return fmt.Errorf("%w: %s no longer exists", ErrNotPending, c.PendingUserID)
		}
		if err != nil {
			return err
		}
		if pending.Status != member.StatusPendingApproval {
			return fmt.Errorf("%w: %s is %s", ErrNotPending, pending.ID, pending.Status)
		}

		var holding *ownership.Ownership
		if action.grants() {
			holding, err = activeHolding(r.owners, c.UnitID, c.ExistingUserID)
			if err != nil {
				return err
			}
		}

		note := in.Note
		switch action {
		case ActionAddCoOwner:
			err = grant(r.owners, c.UnitID, pending.ID, ownership.CoOwner, ownership.CoOwnerAdded, note)
		case ActionLinkFamily:
			err = grant(r.owners, c.UnitID, pending.ID, ownership.Family, ownership.FamilyLinked, note)
		case ActionTransfer:
			if err = r.owners.End(holding.ID); err != nil {
				return err
			}
			if err = r.owners.Record(c.UnitID, c.ExistingUserID, ownership.TransferredOut, note); err != nil {
				return err
			}
			if err = grant(r.owners, c.UnitID, pending.ID, ownership.Owner, ownership.Acquired, note); err != nil {
				return err
			}
			// Conflicts against the previous holder on this unit no longer apply.
			var stale []*Conflict
			if stale, err = r.conflicts.OpenForHolder(c.UnitID, c.ExistingUserID); err != nil {
				return err
			}
			err = dismissAll(r.conflicts, stale, c.ID, in.ActorID, "holder transferred out", &out.Dismissed)
		case ActionMerge:
			err = merge(r, c, pending, in, &out.Dismissed)
		case ActionReject:
			if err = r.members.Reject(pending.ID, in.Reason); err != nil {
				return err
			}
			if note == "" {
				note = in.Reason
			}
			err = dismissOthers(r.conflicts, pending.ID, c.ID, in.ActorID, "registrant rejected", &out.Dismissed)
		}
		if err != nil {
			return err
		}

		if err := r.conflicts.Close(c.ID, StatusResolved, action, note, in.ActorID); err != nil {
			return err
		}

		if action.grants() {
			open, err := r.conflicts.OpenForPending(pending.ID)
			if err != nil {
				return err
			}
			if len(open) == 0 {
				if err := r.members.Approve(pending.ID); err != nil {
					return err
				}
				out.Approved = true
			}
		}

		out.Conflict, err = r.conflicts.Get(c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("conflict resolved", "conflict_id", id, "action", action,
		"actor", in.ActorID, "approved", out.Approved, "dismissed", len(out.Dismissed))
	return out, nil
}

// Dismiss closes an OPEN conflict without changing any holdings.
func (s *Service) Dismiss(ctx context.Context, id int64, actorID, note string) (*Conflict, error) {
	var out *Conflict
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		r := NewRepository(tx)
		c, err := r.Get(id)
		if err != nil {
			return err
		}
		if c.Status != StatusOpen {
			return fmt.Errorf("%w: %d is %s", ErrConflictClosed, id, c.Status)
		}
		if err := r.Close(id, StatusDismissed, "", note, actorID); err != nil {
			return err
		}
		out, err = r.Get(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("conflict dismissed", "conflict_id", id, "actor", actorID)
	return out, nil
}

// merge folds the pending profile into the existing one: auth links and
// holdings move over, the pending profile's other conflicts are dismissed,
// and the pending profile is deleted.
func merge(r txRepos, c *Conflict, pending *member.Profile, in ResolveInput, dismissed *[]int64) error {
	if err := dismissOthers(r.conflicts, pending.ID, c.ID, in.ActorID, "merged into existing member", dismissed); err != nil {
		return err
	}
	if _, err := r.members.MoveLinks(pending.ID, c.ExistingUserID); err != nil {
		return err
	}
	if _, err := r.owners.Reassign(pending.ID, c.ExistingUserID); err != nil {
		return err
	}
	if err := r.members.Delete(pending.ID); err != nil {
		return err
	}
	return r.owners.Record(c.UnitID, c.ExistingUserID, ownership.Merged, in.Note)
}

// grant records e and makes sure the member holds the unit as at least t.
// A member who already holds the unit from an earlier resolution keeps that
// holding, upgraded when t is stronger.
func grant(owners *ownership.Repository, unitID int64, userID string, t ownership.Type, e ownership.Event, note string) error {
	if _, err := owners.Ensure(unitID, userID, t); err != nil {
		return err
	}
	return owners.Record(unitID, userID, e, note)
}

func activeHolding(owners *ownership.Repository, unitID int64, userID string) (*ownership.Ownership, error) {
	holdings, err := owners.ActiveByUnit(unitID)
	if err != nil {
		return nil, err
	}
	for _, h := range holdings {
		if h.UserID == userID {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on unit %d", ErrStale, userID, unitID)
}

func dismissOthers(conflicts *Repository, pendingID string, keepID int64, actorID, note string, dismissed *[]int64) error {
	open, err := conflicts.OpenForPending(pendingID)
	if err != nil {
		return err
	}
	return dismissAll(conflicts, open, keepID, actorID, note, dismissed)
}

func dismissAll(conflicts *Repository, list []*Conflict, keepID int64, actorID, note string, dismissed *[]int64) error {
	for _, o := range list {
		if o.ID == keepID {
			continue
		}
		if err := conflicts.Close(o.ID, StatusDismissed, "", note, actorID); err != nil {
			return err
		}
		*dismissed = append(*dismissed, o.ID)
	}
	return nil
}
