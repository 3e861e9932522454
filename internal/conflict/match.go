package conflict

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/evcraddock/johap/internal/db"
	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/ownership"
	"github.com/evcraddock/johap/internal/property"
)

// Matcher finds the unit a registrant claimed and who already holds it.
type Matcher struct {
	members *member.Repository
	units   *property.Repository
	owners  *ownership.Repository
}

// NewMatcher creates a matcher over a database or transaction.
func NewMatcher(q db.Querier) *Matcher {
	return &Matcher{
		members: member.NewRepository(q),
		units:   property.NewRepository(q),
		owners:  ownership.NewRepository(q),
	}
}

// Match locates the registrant's claimed unit and classifies every other
// active holder of it.
func (m *Matcher) Match(ctx context.Context, p *member.Profile) (*Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Status != member.StatusPendingApproval {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, p.ID, p.Status)
	}
	if p.UnionID == nil {
		return nil, fmt.Errorf("%w: %s has no union", ErrNotPending, p.ID)
	}

	result := &Match{UserID: p.ID}

	unit, err := m.locate(*p.UnionID, p.Claim)
	if errors.Is(err, property.ErrNotFound) {
		result.Outcome = OutcomeNoUnit
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Unit = unit

	holdings, err := m.owners.ActiveByUnit(unit.ID)
	if err != nil {
		return nil, err
	}

	for _, h := range holdings {
		if h.UserID == p.ID {
			continue
		}
		existing, err := m.members.GetByID(h.UserID)
		if err != nil {
			return nil, fmt.Errorf("loading holder of unit %d: %w", unit.ID, err)
		}
		kind := KindOwnership
		if SamePerson(p, existing) {
			kind = KindDuplicate
		}
		result.Candidates = append(result.Candidates, Candidate{
			Existing:  existing,
			Ownership: h,
			Kind:      kind,
		})
	}

	if len(result.Candidates) == 0 {
		result.Outcome = OutcomeClear
	} else {
		result.Outcome = OutcomeConflict
	}
	return result, nil
}

func (m *Matcher) locate(unionID int64, c member.Claim) (*property.Unit, error) {
	if c.PNU != "" {
		return m.units.FindByKey(unionID, c.PNU, c.Dong, c.Ho)
	}
	return m.units.FindByAddress(unionID, c.Address, c.Dong, c.Ho)
}

// SamePerson reports whether two profiles likely describe one person: the
// names match after normalization and so does either the phone number or
// the birth date.
func SamePerson(a, b *member.Profile) bool {
	if NormalizeName(a.Name) == "" || NormalizeName(a.Name) != NormalizeName(b.Name) {
		return false
	}
	if pa := PhoneDigits(a.Phone); pa != "" && pa == PhoneDigits(b.Phone) {
		return true
	}
	ba, bb := strings.TrimSpace(a.BirthDate), strings.TrimSpace(b.BirthDate)
	return ba != "" && ba == bb
}

// NormalizeName composes Hangul to NFC, drops whitespace and lowercases.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// PhoneDigits keeps only the digits of a phone number, so "010-1234-5678"
// and "01012345678" compare equal. A leading +82 becomes 0.
func PhoneDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if strings.HasPrefix(strings.TrimSpace(s), "+82") {
		d = "0" + strings.TrimPrefix(d, "82")
	}
	return d
}
