package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationType_Valid(t *testing.T) {
	for _, typ := range []IntegrationType{
		IntegrationMailchimp, IntegrationNotion, IntegrationDiscord,
		IntegrationHubSpot, IntegrationAirtable, IntegrationTwilio,
		IntegrationGoogleSheets, IntegrationSlack,
	} {
		assert.True(t, typ.Valid(), string(typ))
	}

	assert.False(t, IntegrationType("FAXMACHINE").Valid())
	assert.False(t, IntegrationType("").Valid())
}

func TestIsValidEvent(t *testing.T) {
	assert.True(t, IsValidEvent(EventSubmissionCreated))
	assert.True(t, IsValidEvent(EventFormPublished))
	assert.True(t, IsValidEvent(EventFormCreated))
	assert.False(t, IsValidEvent("submission.deleted"))
}

func TestWebhook_SubscribedTo(t *testing.T) {
	w := &Webhook{Events: []string{EventSubmissionCreated, EventFormPublished}}

	assert.True(t, w.SubscribedTo(EventSubmissionCreated))
	assert.False(t, w.SubscribedTo(EventFormCreated))

	empty := &Webhook{}
	assert.False(t, empty.SubscribedTo(EventSubmissionCreated))
}

func TestGenerateSecret(t *testing.T) {
	s1, err := GenerateSecret()
	require.NoError(t, err)
	s2, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, s1, 64, "32 random bytes hex-encoded")
	assert.NotEqual(t, s1, s2)
}

func TestSubmissionEvent_Data(t *testing.T) {
	e := &SubmissionEvent{
		Answers: []Answer{
			{FieldID: "f1", FieldLabel: "Name", FieldType: "SHORT_TEXT", Value: "Ann"},
			{FieldID: "f2", FieldLabel: "Email", FieldType: "EMAIL", Value: "ann@x.com"},
		},
	}

	data := e.Data()
	assert.Equal(t, "Ann", data["f1"])
	assert.Equal(t, "ann@x.com", data["f2"])
	assert.Len(t, data, 2)
}

func TestSubmissionEvent_FormRef(t *testing.T) {
	formID := uuid.New()
	e := &SubmissionEvent{
		FormID:       formID,
		FormTitle:    "Contact Form",
		FormPublicID: "abc123xyz",
		CompletedAt:  time.Now(),
	}

	ref := e.FormRef()
	assert.Equal(t, formID.String(), ref.ID)
	assert.Equal(t, "Contact Form", ref.Title)
	assert.Equal(t, "abc123xyz", ref.PublicID)
}
