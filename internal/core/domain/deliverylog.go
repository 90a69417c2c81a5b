package domain

import (
	"time"

	"github.com/google/uuid"
)

// DestinationKind distinguishes the three destination variants in delivery
// history and the failure policy.
type DestinationKind string

const (
	DestinationIntegration DestinationKind = "integration"
	DestinationWebhook     DestinationKind = "webhook"
	DestinationHook        DestinationKind = "hook"
)

// DeliveryLog records one delivery attempt against one destination.
// Rows are append-only: created by the dispatcher, read by the failure
// policy and the delivery-history UI, never mutated.
type DeliveryLog struct {
	ID              uuid.UUID       `json:"id"`
	DestinationKind DestinationKind `json:"destination_kind"`
	DestinationID   uuid.UUID       `json:"destination_id"`
	Event           string          `json:"event"`
	Payload         []byte          `json:"payload"`     // JSON snapshot of the sent body
	StatusCode      *int            `json:"status_code"` // nil on transport failure
	Success         bool            `json:"success"`
	Error           *string         `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ProviderResult is one integration's outcome within an aggregate result.
type ProviderResult struct {
	IntegrationID uuid.UUID       `json:"integration_id"`
	Type          IntegrationType `json:"type"`
	Success       bool            `json:"success"`
	Detail        string          `json:"detail,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// WebhookResult is one webhook or hook subscription's outcome within an
// aggregate result. Deactivated marks destinations the failure policy shut
// off during this dispatch; Skipped marks destinations that were already
// inactive and were not attempted.
type WebhookResult struct {
	Kind          DestinationKind `json:"kind"`
	DestinationID uuid.UUID       `json:"destination_id"`
	Success       bool            `json:"success"`
	StatusCode    *int            `json:"status_code,omitempty"`
	Error         string          `json:"error,omitempty"`
	Deactivated   bool            `json:"deactivated,omitempty"`
}

// AggregateResult is the combined per-destination report for one submission
// event. Partial failure is a normal, reportable outcome; the dispatch
// pipeline never surfaces it as an error.
type AggregateResult struct {
	ProviderResults []ProviderResult `json:"providers"`
	WebhookResults  []WebhookResult  `json:"webhooks"`
}
