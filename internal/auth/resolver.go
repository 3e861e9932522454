package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evcraddock/johap/internal/member"
	"github.com/evcraddock/johap/internal/union"
)

const guestCookieName = "johap_guest"

// Access is the effective access level of a request within one union.
type Access string

const (
	AccessAnonymous    Access = "ANONYMOUS"
	AccessUnregistered Access = "UNREGISTERED"
	AccessNeedsProfile Access = "NEEDS_PROFILE"
	AccessPending      Access = "PENDING"
	AccessRejected     Access = "REJECTED"
	AccessMember       Access = "MEMBER"
	AccessAdmin        Access = "ADMIN"
	AccessSystemAdmin  Access = "SYSTEM_ADMIN"
	AccessGuest        Access = "GUEST"
)

var (
	ErrUnionNotFound = errors.New("union not found")
	ErrUnionInactive = errors.New("union is inactive")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Resolution is what a request may do in a union.
type Resolution struct {
	Union      *union.Union    `json:"union,omitempty"`
	AuthUserID string          `json:"auth_user_id,omitempty"`
	Profile    *member.Profile `json:"profile,omitempty"`
	Access     Access          `json:"access"`
	Guest      *AccessToken    `json:"-"`

	// GuestErr is why a presented ?access_token= was refused.
	GuestErr error `json:"-"`
}

// Authenticated reports whether the request carried a valid session or key.
func (r *Resolution) Authenticated() bool {
	return r.AuthUserID != ""
}

// Resolver turns a request plus union slug into a Resolution.
type Resolver struct {
	unions   *union.Repository
	members  *member.Repository
	sessions *SessionStore
	apiKeys  *APIKeyStore
	tokens   *AccessTokenStore
	secure   bool
}

// NewResolver creates a resolver.
func NewResolver(unions *union.Repository, members *member.Repository, sessions *SessionStore,
	apiKeys *APIKeyStore, tokens *AccessTokenStore, secure bool) *Resolver {
	return &Resolver{
		unions:   unions,
		members:  members,
		sessions: sessions,
		apiKeys:  apiKeys,
		tokens:   tokens,
		secure:   secure,
	}
}

// Authenticate returns the auth user ID from the session cookie, else from
// an `Authorization: Bearer jh_...` API key. It returns "" with no error for
// an unauthenticated request, and ErrInvalidAPIKey for a bad bearer key.
func (rv *Resolver) Authenticate(r *http.Request) (string, error) {
	if id, err := rv.sessions.Validate(r); err == nil {
		return id, nil
	} else if !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrInvalidSession) && !errors.Is(err, ErrSessionExpired) {
		return "", err
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", nil
	}
	key := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	// Guest tokens are never bearer credentials.
	if strings.HasPrefix(key, GuestTokenPrefix) {
		return "", ErrInvalidAPIKey
	}

	id, err := rv.apiKeys.Validate(key)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrInvalidAPIKey
	}
	return id, nil
}

// SystemAdmin returns the request's system admin profile, or member.ErrNotFound.
func (rv *Resolver) SystemAdmin(authUserID string) (*member.Profile, error) {
	return rv.members.SystemAdminForAuthUser(authUserID)
}

// Resolve resolves the request's access to the union named by slug. A guest
// token passed as ?access_token= is consumed and remembered in a cookie.
func (rv *Resolver) Resolve(w http.ResponseWriter, r *http.Request, slug string) (*Resolution, error) {
	u, err := rv.unions.GetBySlug(slug)
	if errors.Is(err, union.ErrNotFound) {
		return nil, ErrUnionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading union: %w", err)
	}

	authUserID, err := rv.Authenticate(r)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Union: u, AuthUserID: authUserID, Access: AccessAnonymous}

	if authUserID != "" {
		admin, err := rv.members.SystemAdminForAuthUser(authUserID)
		switch {
		case err == nil:
			res.Profile = admin
			res.Access = AccessSystemAdmin
			return res, nil
		case !errors.Is(err, member.ErrNotFound):
			return nil, err
		}
	}

	if !u.Active() {
		return nil, ErrUnionInactive
	}

	if authUserID != "" {
		p, err := rv.members.ProfileForAuthUser(authUserID, u.ID)
		switch {
		case err == nil:
			res.Profile = p
			res.Access = accessFor(p)
			return res, nil
		case errors.Is(err, member.ErrNotFound):
			res.Access = AccessUnregistered
		default:
			return nil, err
		}
	}

	if err := rv.resolveGuest(w, r, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (rv *Resolver) resolveGuest(w http.ResponseWriter, r *http.Request, res *Resolution) error {
	if raw := r.URL.Query().Get("access_token"); raw != "" {
		t, err := rv.tokens.Validate(res.Union.ID, raw, true)
		if err != nil {
			if isTokenRefusal(err) {
				res.GuestErr = err
				return nil
			}
			return err
		}
		rv.setGuestCookie(w, raw, t)
		res.Guest = t
		res.Access = AccessGuest
		slog.Info("guest access granted", "union", res.Union.Slug, "token_id", t.ID)
		return nil
	}

	cookie, err := r.Cookie(guestCookieName)
	if err != nil {
		return nil
	}
	t, err := rv.tokens.Validate(res.Union.ID, cookie.Value, false)
	if err != nil {
		if isTokenRefusal(err) {
			// A cookie for another union stays; a dead token is cleared.
			if !errors.Is(err, ErrTokenInvalid) {
				rv.clearGuestCookie(w)
			}
			return nil
		}
		return err
	}
	res.Guest = t
	res.Access = AccessGuest
	return nil
}

func (rv *Resolver) setGuestCookie(w http.ResponseWriter, raw string, t *AccessToken) {
	expires := time.Now().Add(sessionExpiry)
	if t.ExpiresAt != nil && t.ExpiresAt.Before(expires) {
		expires = *t.ExpiresAt
	}
	http.SetCookie(w, newCookie(guestCookieName, raw, expires, rv.secure))
}

func (rv *Resolver) clearGuestCookie(w http.ResponseWriter) {
	http.SetCookie(w, expiredCookie(guestCookieName, rv.secure))
}

func isTokenRefusal(err error) bool {
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrTokenExhausted)
}

func accessFor(p *member.Profile) Access {
	switch p.Status {
	case member.StatusPendingProfile:
		return AccessNeedsProfile
	case member.StatusPendingApproval:
		return AccessPending
	case member.StatusRejected:
		return AccessRejected
	case member.StatusApproved:
		if p.Role == member.RoleAdmin {
			return AccessAdmin
		}
		return AccessMember
	}
	return AccessNeedsProfile
}

type ctxKey struct{}

// WithResolution stores a resolution in the context.
func WithResolution(ctx context.Context, res *Resolution) context.Context {
	return context.WithValue(ctx, ctxKey{}, res)
}

// ResolutionFromContext returns the resolution stored by the gate, or nil.
func ResolutionFromContext(ctx context.Context) *Resolution {
	res, _ := ctx.Value(ctxKey{}).(*Resolution)
	return res
}
