package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpulse-relay/internal/core/domain"
)

func TestFormatPhoneNumber(t *testing.T) {
	assert.Equal(t, "+15550100123", FormatPhoneNumber("(555) 010-0123"))
	assert.Equal(t, "+15550100123", FormatPhoneNumber("+1 555 010 0123"))
	assert.Equal(t, "+447911123456", FormatPhoneNumber("+44 7911 123456"))
}

func TestBuildSubmissionMessage_PriorityFieldsFirst(t *testing.T) {
	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "Favorite Color", Value: "blue"},
		domain.Answer{FieldID: "f2", FieldLabel: "Name", Value: "Ann"},
		domain.Answer{FieldID: "f3", FieldLabel: "Email", Value: "ann@example.com"},
	)

	msg := buildSubmissionMessage(event, "https://app.formpulse.io/s/1")
	nameIdx := strings.Index(msg, "Name: Ann")
	colorIdx := strings.Index(msg, "Favorite Color: blue")
	require.GreaterOrEqual(t, nameIdx, 0)
	require.GreaterOrEqual(t, colorIdx, 0)
	assert.Less(t, nameIdx, colorIdx)
	assert.True(t, strings.HasSuffix(msg, "View: https://app.formpulse.io/s/1"))
}

func TestBuildSubmissionMessage_RespectsBudget(t *testing.T) {
	answers := []domain.Answer{
		{FieldID: "f0", FieldLabel: "Essay", Value: strings.Repeat("a", 1390)},
		{FieldID: "f1", FieldLabel: "Overflow", Value: strings.Repeat("b", 400)},
		{FieldID: "f2", FieldLabel: "Short", Value: "x"},
	}

	msg := buildSubmissionMessage(submissionFixture(answers...), "")
	assert.NotContains(t, msg, "Overflow")
	assert.LessOrEqual(t, len(msg), twilioLineBudget)
}

func TestTwilioAdapter_Push_PartialSuccess(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(201, `{"sid":"SM1","status":"queued"}`),
		jsonResponse(400, `{"message":"The 'To' number is not a valid phone number."}`),
	}}
	a := NewTwilioAdapter(client)

	event := submissionFixture(domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"})
	settings := domain.IntegrationSettings{Recipients: []string{"5550100123", "not-a-number"}}
	creds := domain.Credentials{"accountSid": "AC1", "authToken": "tok", "fromNumber": "+15550199"}

	result, err := a.Push(context.Background(), creds, settings, event)
	require.NoError(t, err)
	assert.Equal(t, "1/2 messages sent", result.Detail)
	require.Len(t, result.Recipients, 2)
	assert.True(t, result.Recipients[0].Success)
	assert.Equal(t, "SM1", result.Recipients[0].Detail)
	assert.False(t, result.Recipients[1].Success)
	assert.Contains(t, result.Recipients[1].Error, "not a valid phone number")

	// Form-encoded body with the number normalized to E.164.
	assert.Contains(t, client.bodies[0], "To=%2B15550100123")
}

func TestTwilioAdapter_Push_AllRecipientsFail(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(401, `{"message":"Authenticate"}`),
	}}
	a := NewTwilioAdapter(client)

	event := submissionFixture(domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"})
	creds := domain.Credentials{"accountSid": "AC1", "authToken": "bad", "fromNumber": "+15550199"}

	_, err := a.Push(context.Background(), creds,
		domain.IntegrationSettings{Recipients: []string{"5550100123"}}, event)
	assert.Error(t, err)
}

func TestTwilioAdapter_Push_NoRecipients(t *testing.T) {
	a := NewTwilioAdapter(&scriptedClient{t: t})
	creds := domain.Credentials{"accountSid": "AC1", "authToken": "tok", "fromNumber": "+15550199"}

	_, err := a.Push(context.Background(), creds, domain.IntegrationSettings{}, submissionFixture())
	assert.Error(t, err)
}
