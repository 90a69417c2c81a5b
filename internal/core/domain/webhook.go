package domain

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Webhook is a user-configured destination URL for event notifications.
// Secret is generated once at creation and used only as the HMAC key; it is
// never transmitted in any payload.
type Webhook struct {
	ID        uuid.UUID         `json:"id"`
	AccountID uuid.UUID         `json:"account_id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Secret    string            `json:"-"`
	Events    []string          `json:"events"`
	Headers   map[string]string `json:"headers,omitempty"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SubscribedTo reports whether the webhook subscribes to the given event.
func (w *Webhook) SubscribedTo(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// HookSubscription is a REST-hook registration created by an external
// automation platform: a single event, a target URL, and a per-subscription
// HMAC secret.
type HookSubscription struct {
	ID            uuid.UUID `json:"id"`
	AccountID     uuid.UUID `json:"account_id"`
	Event         string    `json:"event"`
	TargetURL     string    `json:"target_url"`
	Secret        string    `json:"-"`
	Active        bool      `json:"active"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// GenerateSecret returns a fresh 32-byte hex-encoded destination secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
