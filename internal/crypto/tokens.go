package crypto

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// TokenVerifier checks presented API tokens against a bcrypt hash of
// the configured token.
type TokenVerifier struct {
	hash []byte
}

// NewTokenVerifier hashes the configured token. An empty token yields a
// verifier that rejects everything; callers should skip auth entirely
// in that case.
func NewTokenVerifier(token string) (*TokenVerifier, error) {
	if token == "" {
		return &TokenVerifier{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash API token: %w", err)
	}
	return &TokenVerifier{hash: hash}, nil
}

// Enabled reports whether a token was configured.
func (v *TokenVerifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify reports whether presented matches the configured token.
func (v *TokenVerifier) Verify(presented string) bool {
	if !v.Enabled() || presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil
}
