// Package union provides the tenant (housing union) model and data access.
package union

import (
	"errors"
	"time"
)

// Status is whether a union accepts member traffic.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// Valid returns true if s is a known union status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

var (
	ErrNotFound      = errors.New("union not found")
	ErrAlreadyExists = errors.New("union already exists")
	ErrInvalidSlug   = errors.New("invalid union slug")
)

// Union is one tenant. Every member profile, unit and notice belongs to one.
type Union struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the union is active.
func (u *Union) Active() bool {
	return u.Status == StatusActive
}

// reserved slugs collide with top-level routes.
var reserved = map[string]bool{
	"admin":   true,
	"api":     true,
	"auth":    true,
	"system":  true,
	"static":  true,
	"health":  true,
	"passkey": true,
}

// ValidSlug checks that a slug is 2-40 chars of [a-z0-9-], does not start or
// end with a hyphen, and is not reserved.
func ValidSlug(slug string) bool {
	if len(slug) < 2 || len(slug) > 40 {
		return false
	}
	if slug[0] == '-' || slug[len(slug)-1] == '-' {
		return false
	}
	for _, c := range slug {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return !reserved[slug]
}
