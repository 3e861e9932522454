package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const apiKeyBytes = 32 // 256-bit keys

var ErrKeyNotFound = errors.New("key not found")

// APIKey is the stored representation of an API key (no raw key).
type APIKey struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"` // first 8 chars for identification
	AuthUserID string     `json:"auth_user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages API keys in SQLite.
type APIKeyStore struct {
	db *sql.DB
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(db *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// Create generates a new API key for the auth user.
// Returns the raw key (shown once to user) and the stored record.
func (s *APIKeyStore) Create(name, authUserID string) (string, *APIKey, error) {
	raw, err := generateSecret("jh_")
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}

	prefix := raw[:8]

	result, err := s.db.Exec(
		"INSERT INTO api_keys (name, key_prefix, key_hash, auth_user_id) VALUES (?, ?, ?, ?)",
		name, prefix, hashSecret(raw), authUserID,
	)
	if err != nil {
		return "", nil, fmt.Errorf("storing key: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("getting key id: %w", err)
	}

	key := &APIKey{
		ID:         id,
		Name:       name,
		KeyPrefix:  prefix,
		AuthUserID: authUserID,
		CreatedAt:  time.Now(),
	}

	return raw, key, nil
}

// List returns all API keys (without the raw key).
func (s *APIKeyStore) List() ([]APIKey, error) {
	rows, err := s.db.Query(
		"SELECT id, name, key_prefix, auth_user_id, created_at, last_used_at FROM api_keys ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyPrefix, &k.AuthUserID, &k.CreatedAt, &k.LastUsedAt); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}

	return keys, rows.Err()
}

// Delete removes an API key by ID.
func (s *APIKeyStore) Delete(id int64) error {
	result, err := s.db.Exec("DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if rows == 0 {
		return ErrKeyNotFound
	}

	return nil
}

// Validate checks a raw API key against stored hashes and updates
// last_used_at. Returns the owning auth user ID, or "" if the key is unknown.
func (s *APIKeyStore) Validate(rawKey string) (string, error) {
	hash := hashSecret(rawKey)

	var authUserID string
	err := s.db.QueryRow("SELECT auth_user_id FROM api_keys WHERE key_hash = ?", hash).Scan(&authUserID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("validating key: %w", err)
	}

	if _, err := s.db.Exec("UPDATE api_keys SET last_used_at = ? WHERE key_hash = ?", time.Now(), hash); err != nil {
		return "", fmt.Errorf("updating key usage: %w", err)
	}

	return authUserID, nil
}

// generateSecret returns prefix followed by 64 hex chars of randomness.
func generateSecret(prefix string) (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}

func hashSecret(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
