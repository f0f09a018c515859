package session

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"trade-gateway/src/models"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------

// TokenRegistry is the process-wide mapping from session tokens to users.
// Tokens are minted on login and never expire; a user may hold many live
// tokens, and a token resolves to exactly one user. Lookups run per-frame so
// the registry must take concurrent readers and writers without external
// locking.
type TokenRegistry struct {
	tokens sync.Map // string -> *models.MUser
}

// -----------------------------------------------------------------------------

// NewTokenRegistry creates an empty registry.
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{}
}

// -----------------------------------------------------------------------------

// Mint creates a fresh UUID token bound to the user and registers it.
func (r *TokenRegistry) Mint(user *models.MUser) string {
	token := uuid.NewString()
	r.tokens.Store(token, user)
	return token
}

// -----------------------------------------------------------------------------

// Lookup resolves a token to its user, or nil.
func (r *TokenRegistry) Lookup(token string) *models.MUser {
	if token == "" {
		return nil
	}
	if v, ok := r.tokens.Load(token); ok {
		return v.(*models.MUser)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Sha1Hex renders the SHA-1 digest of str as 40 lowercase hex characters,
// the form stored passwords are kept in.
func Sha1Hex(str string) string {
	sum := sha1.Sum([]byte(str))
	return hex.EncodeToString(sum[:])
}
