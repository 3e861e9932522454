// Package conflict matches pending registrants against the property
// registry and resolves the ownership conflicts that matching finds.
package conflict

import (
	"errors"
	"time"

	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/ownership"
	"github.com/evcraddock/johap/internal/property"
)

// Kind classifies a conflict.
type Kind string

const (
	// KindOwnership means another member already holds the claimed unit.
	KindOwnership Kind = "OWNERSHIP"
	// KindDuplicate means the holder looks like the registrant themselves.
	KindDuplicate Kind = "DUPLICATE"
)

// Status is a conflict's lifecycle state.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusResolved  Status = "RESOLVED"
	StatusDismissed Status = "DISMISSED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusResolved || s == StatusDismissed
}

// Action is how an admin resolves a conflict.
type Action string

const (
	ActionAddCoOwner Action = "ADD_CO_OWNER"
	ActionTransfer   Action = "TRANSFER"
	ActionLinkFamily Action = "LINK_FAMILY"
	ActionMerge      Action = "MERGE"
	ActionReject     Action = "REJECT"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAddCoOwner, ActionTransfer, ActionLinkFamily, ActionMerge, ActionReject:
		return true
	}
	return false
}

// grants reports whether the action gives the pending member a holding.
func (a Action) grants() bool {
	return a == ActionAddCoOwner || a == ActionTransfer || a == ActionLinkFamily
}

// Outcome summarizes a match.
type Outcome string

const (
	OutcomeClear    Outcome = "CLEAR"
	OutcomeNoUnit   Outcome = "NO_UNIT"
	OutcomeConflict Outcome = "CONFLICT"
)

var (
	ErrNotFound       = errors.New("conflict not found")
	ErrNotPending     = errors.New("member is not pending approval")
	ErrNoUnit         = errors.New("claimed unit is not registered")
	ErrOpenConflicts  = errors.New("member has open conflicts")
	ErrConflictClosed = errors.New("conflict is already closed")
	ErrStale          = errors.New("existing ownership is no longer active")
	ErrReasonRequired = errors.New("rejection reason is required")
	ErrUnknownAction  = errors.New("unknown resolution action")
)

// Conflict is a persisted clash between a pending registrant and an
// existing holder of the unit they claimed.
type Conflict struct {
	ID             int64      `json:"id"`
	UnionID        int64      `json:"union_id"`
	UnitID         int64      `json:"unit_id"`
	PendingUserID  string     `json:"pending_user_id"`
	ExistingUserID string     `json:"existing_user_id"`
	Kind           Kind       `json:"kind"`
	Status         Status     `json:"status"`
	Action         Action     `json:"action,omitempty"`
	Note           string     `json:"note,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Candidate is an existing holder found while matching.
type Candidate struct {
	Existing  *member.Profile      `json:"existing"`
	Ownership *ownership.Ownership `json:"ownership"`
	Kind      Kind                 `json:"kind"`
}

// Match is the result of matching a registrant against the registry.
type Match struct {
	UserID     string         `json:"user_id"`
	Outcome    Outcome        `json:"outcome"`
	Unit       *property.Unit `json:"unit,omitempty"`
	Candidates []Candidate    `json:"candidates,omitempty"`
}

// Detection is a match together with the registrant's open conflicts.
type Detection struct {
	Match *Match      `json:"match"`
	Open  []*Conflict `json:"open"`
}

// Approval is the result of approving a registrant.
type Approval struct {
	Match     *Match               `json:"match"`
	Ownership *ownership.Ownership `json:"ownership,omitempty"`
}

// ResolveInput carries who resolves a conflict and why.
type ResolveInput struct {
	ActorID string `json:"-"`
	Note    string `json:"note"`
	Reason  string `json:"reason"`
}

// Resolution is the result of resolving a conflict.
type Resolution struct {
	Conflict  *Conflict `json:"conflict"`
	Approved  bool      `json:"approved"`
	Dismissed []int64   `json:"dismissed"`
}
