package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	sessionExpiry = 30 * 24 * time.Hour
	cookieName    = "johap_session"
)

var (
	ErrNoSession      = errors.New("no session cookie")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore manages login sessions. A session belongs to an auth user,
// not to a union profile, so one login covers every union the user joined.
// The cookie carries the raw session id; only its sha256 is stored.
type SessionStore struct {
	db     *sql.DB
	secure bool
}

// NewSessionStore creates a session store. Secure marks the cookie for
// HTTPS only.
func NewSessionStore(db *sql.DB, secure bool) *SessionStore {
	return &SessionStore{db: db, secure: secure}
}

// Create starts a session for the auth user and sets the cookie.
func (s *SessionStore) Create(w http.ResponseWriter, authUserID string) error {
	raw, err := generateSecret("")
	if err != nil {
		return fmt.Errorf("generating session id: %w", err)
	}
	expiresAt := time.Now().Add(sessionExpiry).UTC()

	if _, err := s.db.Exec(
		"INSERT INTO sessions (id, auth_user_id, expires_at) VALUES (?, ?, ?)",
		hashSecret(raw), authUserID, expiresAt,
	); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	http.SetCookie(w, newCookie(cookieName, raw, expiresAt, s.secure))
	return nil
}

// Validate returns the auth user ID of the request's session. An expired
// session is deleted on sight.
func (s *SessionStore) Validate(r *http.Request) (string, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}
	id := hashSecret(cookie.Value)

	var authUserID string
	var expiresAt time.Time
	err = s.db.QueryRow(
		"SELECT auth_user_id, expires_at FROM sessions WHERE id = ?", id,
	).Scan(&authUserID, &expiresAt)
	if err == sql.ErrNoRows {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", fmt.Errorf("querying session: %w", err)
	}

	if !time.Now().Before(expiresAt) {
		if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
			return "", fmt.Errorf("deleting expired session: %w", err)
		}
		return "", ErrSessionExpired
	}
	return authUserID, nil
}

// Destroy ends the request's session, if any, and clears the cookie.
func (s *SessionStore) Destroy(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil
	}
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", hashSecret(cookie.Value)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	http.SetCookie(w, expiredCookie(cookieName, s.secure))
	return nil
}

// Cleanup removes expired sessions and returns how many were removed.
func (s *SessionStore) Cleanup() (int64, error) {
	result, err := s.db.Exec(
		"DELETE FROM sessions WHERE julianday(expires_at) < julianday(?)", time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	return result.RowsAffected()
}

func newCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(name string, secure bool) *http.Cookie {
	c := newCookie(name, "", time.Time{}, secure)
	c.MaxAge = -1
	return c
}
