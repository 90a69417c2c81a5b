package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKeyPrefixLen is how many leading characters of a key are stored in
// clear for lookup; the full key is stored only as an argon2id hash.
const APIKeyPrefixLen = 12

// APIKey authenticates an external automation platform against the REST-hook
// API. Long-lived, distinct from session tokens.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	Name       string     `json:"name"`
	Hash       string     `json:"-"`
	Prefix     string     `json:"prefix"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
