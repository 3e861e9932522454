package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evcraddock/johap/internal/db"
)

// Identity providers.
const (
	ProviderEmail = "email"
	ProviderKakao = "kakao"
	ProviderNaver = "naver"
)

var ErrUserNotFound = errors.New("auth user not found")

// AuthUser is a login identity owner. It may hold one profile per union.
type AuthUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthUserStore manages auth users and their provider identities.
type AuthUserStore struct {
	db         *sql.DB
	adminEmail string
}

// NewAuthUserStore creates an auth user store.
func NewAuthUserStore(db *sql.DB, adminEmail string) *AuthUserStore {
	return &AuthUserStore{db: db, adminEmail: strings.ToLower(strings.TrimSpace(adminEmail))}
}

// Upsert returns the auth user owning the provider identity, creating both on
// first login. A non-empty email or name refreshes the stored value.
func (s *AuthUserStore) Upsert(ctx context.Context, provider, providerUserID, email, name string) (*AuthUser, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	providerUserID = strings.TrimSpace(providerUserID)
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if provider == "" || providerUserID == "" {
		return nil, fmt.Errorf("provider and provider user id are required")
	}

	var authUserID string
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRow(
			"SELECT auth_user_id FROM identities WHERE provider = ? AND provider_user_id = ?",
			provider, providerUserID,
		).Scan(&authUserID)

		switch {
		case err == sql.ErrNoRows:
			authUserID = uuid.NewString()
			if _, err := tx.Exec(
				"INSERT INTO auth_users (id, email, display_name) VALUES (?, ?, ?)",
				authUserID, email, name,
			); err != nil {
				return fmt.Errorf("inserting auth user: %w", err)
			}
			if _, err := tx.Exec(
				"INSERT INTO identities (auth_user_id, provider, provider_user_id, last_login_at) VALUES (?, ?, ?, ?)",
				authUserID, provider, providerUserID, time.Now(),
			); err != nil {
				return fmt.Errorf("inserting identity: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("querying identity: %w", err)
		}

		if _, err := tx.Exec(
			"UPDATE identities SET last_login_at = ? WHERE provider = ? AND provider_user_id = ?",
			time.Now(), provider, providerUserID,
		); err != nil {
			return fmt.Errorf("updating identity: %w", err)
		}
		if _, err := tx.Exec(
			`UPDATE auth_users SET
				email = CASE WHEN ? != '' THEN ? ELSE email END,
				display_name = CASE WHEN ? != '' THEN ? ELSE display_name END
			WHERE id = ?`,
			email, email, name, name, authUserID,
		); err != nil {
			return fmt.Errorf("updating auth user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(authUserID)
}

// Get returns an auth user by ID.
func (s *AuthUserStore) Get(id string) (*AuthUser, error) {
	var u AuthUser
	err := s.db.QueryRow(
		"SELECT id, email, display_name, created_at FROM auth_users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying auth user: %w", err)
	}
	return &u, nil
}

// IsAdminEmail checks if an email is the configured admin.
func (s *AuthUserStore) IsAdminEmail(email string) bool {
	return s.adminEmail != "" && strings.ToLower(strings.TrimSpace(email)) == s.adminEmail
}

// EmailAllowed checks if an email may receive a console login link: the
// configured admin email, or the email of an existing system admin.
func (s *AuthUserStore) EmailAllowed(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	if s.IsAdminEmail(email) {
		return true
	}

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM auth_users a
		JOIN user_auth_links l ON l.auth_user_id = a.id
		JOIN users u ON u.id = l.user_id
		WHERE LOWER(a.email) = ? AND u.role = 'SYSTEM_ADMIN'`, email,
	).Scan(&count)
	if err != nil {
		return false
	}

	return count > 0
}
