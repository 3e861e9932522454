package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateTTL = 10 * time.Minute

var ErrInvalidState = errors.New("invalid oauth state")

// StateClaims round-trips the login request through the provider.
type StateClaims struct {
	Provider string `json:"provider"`
	Slug     string `json:"slug"`
	Next     string `json:"next,omitempty"`
	Nonce    string `json:"nonce"`
	jwt.RegisteredClaims
}

// StateSigner signs and verifies state tokens with HS256.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

// NewStateSigner creates a signer.
func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), now: time.Now}
}

// Sign issues a state token for provider and slug with a fresh nonce.
func (s *StateSigner) Sign(provider, slug, next string) (token, nonce string, err error) {
	nonce, err = newNonce()
	if err != nil {
		return "", "", fmt.Errorf("generating nonce: %w", err)
	}

	now := s.now()
	claims := StateClaims{
		Provider: provider,
		Slug:     slug,
		Next:     next,
		Nonce:    nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("signing state: %w", err)
	}
	return token, nonce, nil
}

// Verify checks signature and expiry, and that the state was issued for
// provider.
func (s *StateSigner) Verify(token, provider string) (*StateClaims, error) {
	var claims StateClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.Provider != provider {
		return nil, fmt.Errorf("%w: issued for %q", ErrInvalidState, claims.Provider)
	}
	if claims.Nonce == "" || claims.Slug == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrInvalidState)
	}
	return &claims, nil
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
