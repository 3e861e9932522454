package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const linkExpiry = 15 * time.Minute

var (
	ErrLinkInvalid = errors.New("invalid login link")
	ErrLinkUsed    = errors.New("login link already used")
	ErrLinkExpired = errors.New("login link expired")
)

// TokenStore manages single-use email login links. Only the sha256 of a
// link token is stored.
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenStore creates a login link store.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, now: time.Now}
}

// Create issues a login link token for email and returns the raw token.
func (s *TokenStore) Create(email string) (string, error) {
	raw, err := generateSecret("")
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT INTO auth_tokens (token_hash, email, expires_at) VALUES (?, ?, ?)",
		hashSecret(raw), strings.ToLower(strings.TrimSpace(email)), s.now().Add(linkExpiry).UTC(),
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return raw, nil
}

// Validate redeems a login link and returns its email. A link redeems once;
// the guarded UPDATE keeps two concurrent verifications from both winning.
func (s *TokenStore) Validate(raw string) (string, error) {
	hash := hashSecret(raw)
	now := s.now()

	var email string
	err := s.db.QueryRow(
		`UPDATE auth_tokens SET used = 1
		WHERE token_hash = ? AND used = 0 AND julianday(expires_at) > julianday(?)
		RETURNING email`,
		hash, now.UTC(),
	).Scan(&email)
	if err == nil {
		return email, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("redeeming token: %w", err)
	}

	// Nothing redeemed; report why.
	var used int
	var expiresAt time.Time
	err = s.db.QueryRow(
		"SELECT used, expires_at FROM auth_tokens WHERE token_hash = ?", hash,
	).Scan(&used, &expiresAt)
	switch {
	case err == sql.ErrNoRows:
		return "", ErrLinkInvalid
	case err != nil:
		return "", fmt.Errorf("querying token: %w", err)
	case used != 0:
		return "", ErrLinkUsed
	default:
		return "", ErrLinkExpired
	}
}

// Cleanup removes expired links and returns how many were removed.
func (s *TokenStore) Cleanup() (int64, error) {
	result, err := s.db.Exec(
		"DELETE FROM auth_tokens WHERE julianday(expires_at) < julianday(?)", s.now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up login links: %w", err)
	}
	return result.RowsAffected()
}
