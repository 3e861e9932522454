package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// GuestTokenPrefix marks raw guest access tokens.
const GuestTokenPrefix = "jhg_"

var (
	ErrTokenInvalid   = errors.New("access token invalid")
	ErrTokenExpired   = errors.New("access token expired")
	ErrTokenRevoked   = errors.New("access token revoked")
	ErrTokenExhausted = errors.New("access token has no uses left")
	ErrTokenNotFound  = errors.New("access token not found")
	ErrTokenName      = errors.New("token name is required")
	ErrTokenMaxUses   = errors.New("max uses must be positive")
)

// AccessToken grants read-only guest access to one union.
type AccessToken struct {
	ID         int64      `json:"id"`
	UnionID    int64      `json:"union_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	MaxUses    *int       `json:"max_uses,omitempty"`
	UseCount   int        `json:"use_count"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// IssueInput describes a new guest token.
type IssueInput struct {
	UnionID   int64
	Name      string
	CreatedBy string
	ExpiresAt *time.Time
	MaxUses   *int
}

// check reports why the token cannot be used at now, or nil. Max uses bound
// redemptions only; a redeemed token keeps working until it expires or is
// revoked.
func (t *AccessToken) check(now time.Time, redeem bool) error {
	if t.RevokedAt != nil {
		return ErrTokenRevoked
	}
	if t.ExpiresAt != nil && !now.Before(*t.ExpiresAt) {
		return ErrTokenExpired
	}
	if redeem && t.MaxUses != nil && t.UseCount >= *t.MaxUses {
		return ErrTokenExhausted
	}
	return nil
}

// AccessTokenStore manages guest access tokens in SQLite.
type AccessTokenStore struct {
	db *sql.DB
}

// NewAccessTokenStore creates an access token store.
func NewAccessTokenStore(db *sql.DB) *AccessTokenStore {
	return &AccessTokenStore{db: db}
}

const accessTokenColumns = `id, union_id, name, key_prefix, expires_at, max_uses, use_count,
	revoked_at, created_by, created_at, last_used_at`

func scanAccessToken(row interface{ Scan(...interface{}) error }) (*AccessToken, error) {
	var t AccessToken
	var maxUses sql.NullInt64
	if err := row.Scan(
		&t.ID, &t.UnionID, &t.Name, &t.KeyPrefix, &t.ExpiresAt, &maxUses, &t.UseCount,
		&t.RevokedAt, &t.CreatedBy, &t.CreatedAt, &t.LastUsedAt,
	); err != nil {
		return nil, err
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		t.MaxUses = &n
	}
	return &t, nil
}

// Issue creates a guest token. Returns the raw token (shown once) and the
// stored record.
func (s *AccessTokenStore) Issue(in IssueInput) (string, *AccessToken, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", nil, ErrTokenName
	}
	if in.MaxUses != nil && *in.MaxUses <= 0 {
		return "", nil, ErrTokenMaxUses
	}

	raw, err := generateSecret(GuestTokenPrefix)
	if err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}

	var maxUses, expiresAt interface{}
	if in.MaxUses != nil {
		maxUses = *in.MaxUses
	}
	if in.ExpiresAt != nil {
		expiresAt = in.ExpiresAt.UTC()
	}

	result, err := s.db.Exec(
		`INSERT INTO access_tokens (union_id, name, key_prefix, token_hash, expires_at, max_uses, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.UnionID, name, raw[:12], hashSecret(raw), expiresAt, maxUses, in.CreatedBy,
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("getting token id: %w", err)
	}

	t, err := s.Get(id)
	if err != nil {
		return "", nil, err
	}

	slog.Info("access token issued", "id", id, "union_id", in.UnionID, "name", name)
	return raw, t, nil
}

// Get returns a token by ID.
func (s *AccessTokenStore) Get(id int64) (*AccessToken, error) {
	t, err := scanAccessToken(s.db.QueryRow(
		"SELECT "+accessTokenColumns+" FROM access_tokens WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	return t, nil
}

// List returns tokens newest first. A zero unionID lists every union.
func (s *AccessTokenStore) List(unionID int64) ([]*AccessToken, error) {
	query := "SELECT " + accessTokenColumns + " FROM access_tokens"
	var args []interface{}
	if unionID != 0 {
		query += " WHERE union_id = ?"
		args = append(args, unionID)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var tokens []*AccessToken
	for rows.Next() {
		t, err := scanAccessToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

// Revoke marks a token revoked. Revoking twice is a no-op.
func (s *AccessTokenStore) Revoke(id int64) error {
	result, err := s.db.Exec(
		"UPDATE access_tokens SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrTokenNotFound
	}

	slog.Info("access token revoked", "id", id)
	return nil
}

// Validate checks a raw token for the union. With consume set, one use is
// counted; the count is guarded in SQL so a token is never redeemed past
// max_uses. Without it the token is only checked for expiry and revocation.
func (s *AccessTokenStore) Validate(unionID int64, raw string, consume bool) (*AccessToken, error) {
	if !strings.HasPrefix(raw, GuestTokenPrefix) {
		return nil, ErrTokenInvalid
	}

	t, err := scanAccessToken(s.db.QueryRow(
		"SELECT "+accessTokenColumns+" FROM access_tokens WHERE token_hash = ?", hashSecret(raw),
	))
	if err == sql.ErrNoRows {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	if t.UnionID != unionID {
		return nil, ErrTokenInvalid
	}

	now := time.Now()
	if err := t.check(now, consume); err != nil {
		return nil, err
	}

	if !consume {
		return t, nil
	}

	result, err := s.db.Exec(
		`UPDATE access_tokens SET use_count = use_count + 1, last_used_at = ?
		WHERE id = ? AND revoked_at IS NULL AND (max_uses IS NULL OR use_count < max_uses)`,
		now.UTC(), t.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("consuming token: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return nil, ErrTokenExhausted
	}

	t.UseCount++
	t.LastUsedAt = &now
	return t, nil
}

// Cleanup removes expired tokens and returns how many were removed.
func (s *AccessTokenStore) Cleanup() (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM access_tokens
		WHERE expires_at IS NOT NULL AND julianday(expires_at) < julianday(?)`, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up access tokens: %w", err)
	}
	return result.RowsAffected()
}
