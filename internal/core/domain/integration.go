package domain

import (
	"time"

	"github.com/google/uuid"
)

// IntegrationType enumerates the supported third-party providers.
type IntegrationType string

const (
	IntegrationMailchimp    IntegrationType = "MAILCHIMP"
	IntegrationNotion       IntegrationType = "NOTION"
	IntegrationDiscord      IntegrationType = "DISCORD"
	IntegrationHubSpot      IntegrationType = "HUBSPOT"
	IntegrationAirtable     IntegrationType = "AIRTABLE"
	IntegrationTwilio       IntegrationType = "TWILIO"
	IntegrationGoogleSheets IntegrationType = "GOOGLE_SHEETS"
	IntegrationSlack        IntegrationType = "SLACK"
)

// Valid reports whether t is a known provider type.
func (t IntegrationType) Valid() bool {
	switch t {
	case IntegrationMailchimp, IntegrationNotion, IntegrationDiscord,
		IntegrationHubSpot, IntegrationAirtable, IntegrationTwilio,
		IntegrationGoogleSheets, IntegrationSlack:
		return true
	}
	return false
}

// Credentials is a decrypted provider credential bundle. Its keys vary by
// provider (apiKey, accessToken, webhookUrl, accountSid, authToken,
// fromNumber). A bundle is scoped to a single adapter call and must never be
// persisted or logged.
type Credentials map[string]string

// Integration is an account-level connection to a third-party provider.
// CredentialsEnc holds the AES-GCM encrypted JSON credential bundle; it is
// decrypted only at the adapter call boundary.
type Integration struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      uuid.UUID       `json:"account_id"`
	Type           IntegrationType `json:"type"`
	CredentialsEnc string          `json:"-"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IntegrationSettings is the per-form configuration for one linked
// integration. Which fields apply depends on the provider type.
type IntegrationSettings struct {
	// Target containers.
	ListID        string `json:"listId,omitempty"`        // Mailchimp audience
	DatabaseID    string `json:"databaseId,omitempty"`    // Notion database
	BaseID        string `json:"baseId,omitempty"`        // Airtable base
	TableID       string `json:"tableId,omitempty"`       // Airtable table id or name
	SpreadsheetID string `json:"spreadsheetId,omitempty"` // Google Sheets
	SheetName     string `json:"sheetName,omitempty"`

	// FieldMapping maps internal field IDs to destination fields.
	FieldMapping map[string]string `json:"fieldMapping,omitempty"`

	// UniqueField enables find-or-update semantics for table-row sync.
	UniqueField string `json:"uniqueField,omitempty"`

	Recipients []string `json:"recipients,omitempty"` // Twilio phone numbers
	Tags       []string `json:"tags,omitempty"`       // Mailchimp subscriber tags
	CreateDeal bool     `json:"createDeal,omitempty"` // HubSpot deal creation
	Color      string   `json:"color,omitempty"`      // Discord embed color, hex
	ViewURL    string   `json:"viewUrl,omitempty"`    // link appended to notifications
}

// FormIntegration links an integration to a form with its settings. Dispatch
// consults the joined Integration read-only.
type FormIntegration struct {
	ID            uuid.UUID           `json:"id"`
	FormID        uuid.UUID           `json:"form_id"`
	IntegrationID uuid.UUID           `json:"integration_id"`
	Settings      IntegrationSettings `json:"settings"`
	Active        bool                `json:"active"`
	Integration   *Integration        `json:"integration,omitempty"`
}

// ProviderIdentity is the result of a credential test: whatever identifying
// detail the provider returns (account name, portal id, user email).
type ProviderIdentity struct {
	Detail map[string]string `json:"detail"`
}

// RecipientOutcome reports one recipient's result for fan-out pushes (SMS).
type RecipientOutcome struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PushResult is the structured outcome of a successful provider push.
type PushResult struct {
	RecordID   string             `json:"record_id,omitempty"`
	Detail     string             `json:"detail,omitempty"`
	Recipients []RecipientOutcome `json:"recipients,omitempty"`
}

// Container is a provider-side target discovered for the configuration UI:
// a mailing list, database, base, sheet, or pipeline.
type Container struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}
