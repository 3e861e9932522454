package member

import (
	"errors"
	"strings"
	"time"
)

// Role is a profile's authority within its union.
type Role string

// Roles.
const (
	RoleSystemAdmin Role = "SYSTEM_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleUser        Role = "USER"
)

// Status is a profile's membership state.
type Status string

// Membership states.
const (
	StatusPendingProfile  Status = "PENDING_PROFILE"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingProfile, StatusPendingApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	ErrNotFound          = errors.New("member not found")
	ErrAlreadyRegistered = errors.New("already registered in this union")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrIncompleteProfile = errors.New("profile is incomplete")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrInvalidRole       = errors.New("invalid role")
)

// transitions lists the allowed status changes.
var transitions = map[Status][]Status{
	StatusPendingProfile:  {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusRejected:        {StatusPendingApproval},
	StatusApproved:        {StatusRejected},
}

// CanTransition reports whether a profile may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Claim is the property a registrant says they own.
type Claim struct {
	PNU     string `json:"pnu,omitempty"`
	Dong    string `json:"dong,omitempty"`
	Ho      string `json:"ho,omitempty"`
	Address string `json:"address,omitempty"`
}

// Empty reports whether no property was claimed.
func (c Claim) Empty() bool {
	return strings.TrimSpace(c.PNU) == "" && strings.TrimSpace(c.Address) == ""
}

// Profile is a person's membership record in one union. System admins have
// no union.
type Profile struct {
	ID             string     `json:"id"`
	UnionID        *int64     `json:"union_id,omitempty"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	BirthDate      string     `json:"birth_date,omitempty"`
	Role           Role       `json:"role"`
	Status         Status     `json:"status"`
	Claim          Claim      `json:"claim"`
	RejectedReason string     `json:"rejected_reason,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Complete reports whether the profile carries everything approval needs.
func (p *Profile) Complete() bool {
	return Input{Name: p.Name, Phone: p.Phone, Claim: p.Claim}.Complete()
}

// IsAdmin reports whether the profile may administer its union.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSystemAdmin
}

// Input is the registration form.
type Input struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	BirthDate string `json:"birth_date"`
	Claim     Claim  `json:"claim"`
}

// Complete reports whether the form has a name, a phone number and a claimed
// property.
func (in Input) Complete() bool {
	return strings.TrimSpace(in.Name) != "" &&
		strings.TrimSpace(in.Phone) != "" &&
		!in.Claim.Empty()
}

func (in Input) trimmed() Input {
	return Input{
		Name:      strings.TrimSpace(in.Name),
		Phone:     strings.TrimSpace(in.Phone),
		BirthDate: strings.TrimSpace(in.BirthDate),
		Claim: Claim{
			PNU:     strings.TrimSpace(in.Claim.PNU),
			Dong:    strings.TrimSpace(in.Claim.Dong),
			Ho:      strings.TrimSpace(in.Claim.Ho),
			Address: strings.TrimSpace(in.Claim.Address),
		},
	}
}
