// Package ownership records who holds which unit, and an append-only log
// of how holdings changed.
package ownership

import (
	"errors"
	"time"
)

// Type is the kind of holding a member has on a unit.
type Type string

const (
	Owner   Type = "OWNER"
	CoOwner Type = "CO_OWNER"
	Family  Type = "FAMILY"
)

// ValidTypes is the set of allowed ownership types.
var ValidTypes = []Type{Owner, CoOwner, Family}

// IsValid checks if an ownership type is recognized.
func (t Type) IsValid() bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Outranks reports whether t is a stronger holding than o. OWNER is the
// strongest, FAMILY the weakest.
func (t Type) Outranks(o Type) bool {
	return t.rank() > o.rank()
}

func (t Type) rank() int {
	switch t {
	case Owner:
		return 3
	case CoOwner:
		return 2
	case Family:
		return 1
	}
	return 0
}

// Label returns the Korean label for the ownership type.
func (t Type) Label() string {
	switch t {
	case Owner:
		return "소유자"
	case CoOwner:
		return "공동소유자"
	case Family:
		return "가족"
	default:
		return string(t)
	}
}

// Event is an entry in a unit's ownership history.
type Event string

const (
	Acquired       Event = "ACQUIRED"
	CoOwnerAdded   Event = "CO_OWNER_ADDED"
	FamilyLinked   Event = "FAMILY_LINKED"
	TransferredOut Event = "TRANSFERRED_OUT"
	Merged         Event = "MERGED"
)

// IsValid checks if an event is recognized.
func (e Event) IsValid() bool {
	switch e {
	case Acquired, CoOwnerAdded, FamilyLinked, TransferredOut, Merged:
		return true
	}
	return false
}

var (
	ErrNotFound      = errors.New("ownership not found")
	ErrNotActive     = errors.New("ownership is no longer active")
	ErrAlreadyHolder = errors.New("member already holds this unit")
)

// Ownership is one member's holding on one unit.
type Ownership struct {
	ID        int64      `json:"id"`
	UnitID    int64      `json:"unit_id"`
	UserID    string     `json:"user_id"`
	Type      Type       `json:"type"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Record is a logged ownership event.
type Record struct {
	ID        int64     `json:"id"`
	UnitID    int64     `json:"unit_id"`
	UserID    string    `json:"user_id"`
	Event     Event     `json:"event"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
