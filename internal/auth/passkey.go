package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/webauthn"
)

var ErrCredentialNotFound = errors.New("credential not found")

// PasskeyUser implements webauthn.User for an auth user.
type PasskeyUser struct {
	user        *AuthUser
	credentials []webauthn.Credential
}

// NewPasskeyUser creates a PasskeyUser for the given auth user.
func NewPasskeyUser(user *AuthUser, credentials []webauthn.Credential) *PasskeyUser {
	return &PasskeyUser{user: user, credentials: credentials}
}

// WebAuthnID returns the auth user ID. Discoverable logins hand it back as
// the user handle.
func (u *PasskeyUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

// WebAuthnName returns the email, falling back to the ID.
func (u *PasskeyUser) WebAuthnName() string {
	if u.user.Email != "" {
		return u.user.Email
	}
	return u.user.ID
}

// WebAuthnDisplayName returns the display name, falling back to the name.
func (u *PasskeyUser) WebAuthnDisplayName() string {
	if u.user.DisplayName != "" {
		return u.user.DisplayName
	}
	return u.WebAuthnName()
}

// WebAuthnCredentials returns the stored credentials.
func (u *PasskeyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// PasskeyStore manages passkey credentials in SQLite.
type PasskeyStore struct {
	db *sql.DB
}

// NewPasskeyStore creates a passkey store.
func NewPasskeyStore(db *sql.DB) *PasskeyStore {
	return &PasskeyStore{db: db}
}

// StoredCredential is a passkey credential with metadata.
type StoredCredential struct {
	ID         string
	AuthUserID string
	Name       string
	Credential webauthn.Credential
}

// Save stores a new passkey credential.
func (s *PasskeyStore) Save(authUserID, name string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	id := fmt.Sprintf("%x", cred.ID)
	if _, err := s.db.Exec(
		"INSERT INTO passkey_credentials (id, auth_user_id, name, credential_json) VALUES (?, ?, ?, ?)",
		id, authUserID, name, string(data),
	); err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}

	return nil
}

// ListByUser returns all credentials for the given auth user.
func (s *PasskeyStore) ListByUser(authUserID string) ([]StoredCredential, error) {
	rows, err := s.db.Query(
		"SELECT id, auth_user_id, name, credential_json FROM passkey_credentials WHERE auth_user_id = ? ORDER BY created_at",
		authUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var result []StoredCredential
	for rows.Next() {
		var sc StoredCredential
		var data string
		if err := rows.Scan(&sc.ID, &sc.AuthUserID, &sc.Name, &data); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sc.Credential); err != nil {
			return nil, fmt.Errorf("unmarshaling credential: %w", err)
		}
		result = append(result, sc)
	}

	return result, rows.Err()
}

// WebAuthnCredentials returns just the webauthn.Credential slice for the auth user.
func (s *PasskeyStore) WebAuthnCredentials(authUserID string) ([]webauthn.Credential, error) {
	stored, err := s.ListByUser(authUserID)
	if err != nil {
		return nil, err
	}

	creds := make([]webauthn.Credential, len(stored))
	for i, sc := range stored {
		creds[i] = sc.Credential
	}

	return creds, nil
}

// Delete removes a credential owned by the auth user.
func (s *PasskeyStore) Delete(id, authUserID string) error {
	result, err := s.db.Exec(
		"DELETE FROM passkey_credentials WHERE id = ? AND auth_user_id = ?",
		id, authUserID,
	)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrCredentialNotFound
	}

	return nil
}
