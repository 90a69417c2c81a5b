package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpulse-relay/internal/core/domain"
)

func TestMapContactProperties_AutoMapsAliases(t *testing.T) {
	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "First Name", Value: "Ann"},
		domain.Answer{FieldID: "f2", FieldLabel: "Last Name", Value: "Lee"},
		domain.Answer{FieldID: "f3", FieldLabel: "Company", Value: "Acme"},
		domain.Answer{FieldID: "f4", FieldLabel: "Job Title", Value: "CTO"},
	)

	contact, deal := mapContactProperties(event, nil)
	assert.Empty(t, deal)
	assert.Equal(t, "Ann", contact["firstname"])
	assert.Equal(t, "Lee", contact["lastname"])
	assert.Equal(t, "Acme", contact["company"])
	assert.Equal(t, "CTO", contact["jobtitle"])
}

func TestMapContactProperties_PrefixesSplitContactAndDeal(t *testing.T) {
	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "Budget", Value: "5000"},
		domain.Answer{FieldID: "f2", FieldLabel: "Role", Value: "Buyer"},
	)
	mapping := map[string]string{
		"f1": "deal.amount",
		"f2": "contact.jobtitle",
	}

	contact, deal := mapContactProperties(event, mapping)
	assert.Equal(t, "5000", deal["amount"])
	assert.Equal(t, "Buyer", contact["jobtitle"])
}

func TestHubSpotAdapter_Push_UpdatesExistingContact(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, `{"results":[{"id":"301"}]}`),
		jsonResponse(200, `{"id":"301"}`),
	}}
	a := NewHubSpotAdapter(client)

	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "Email", Value: "ann@example.com"},
		domain.Answer{FieldID: "f2", FieldLabel: "First Name", Value: "Ann"},
	)

	result, err := a.Push(context.Background(),
		domain.Credentials{"accessToken": "tok"}, domain.IntegrationSettings{}, event)
	require.NoError(t, err)
	assert.Equal(t, "301", result.RecordID)
	assert.Equal(t, "contact updated", result.Detail)

	require.Len(t, client.requests, 2)
	assert.Equal(t, http.MethodPost, client.requests[0].Method)
	assert.Contains(t, client.requests[0].URL.Path, "/contacts/search")
	assert.Equal(t, http.MethodPatch, client.requests[1].Method)
	assert.Contains(t, client.requests[1].URL.Path, "/contacts/301")

	var patch struct {
		Properties map[string]string `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(client.bodies[1]), &patch))
	assert.Equal(t, "ann@example.com", patch.Properties["email"])
	assert.Equal(t, "Ann", patch.Properties["firstname"])
	assert.Equal(t, "NEW", patch.Properties["hs_lead_status"])
	assert.Equal(t, "Customer Feedback", patch.Properties["recent_conversion_event_name"])
}

func TestHubSpotAdapter_Push_CreatesDealWithDefaults(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, `{"results":[]}`),
		jsonResponse(201, `{"id":"88"}`),
		jsonResponse(201, `{"id":"d1"}`),
	}}
	a := NewHubSpotAdapter(client)

	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "Email", Value: "ann@example.com"},
		domain.Answer{FieldID: "f2", FieldLabel: "First Name", Value: "Ann"},
	)

	result, err := a.Push(context.Background(),
		domain.Credentials{"accessToken": "tok"},
		domain.IntegrationSettings{CreateDeal: true}, event)
	require.NoError(t, err)
	assert.Equal(t, "88", result.RecordID)
	assert.Equal(t, "contact created, deal created", result.Detail)

	require.Len(t, client.requests, 3)
	var deal struct {
		Properties   map[string]string        `json:"properties"`
		Associations []map[string]interface{} `json:"associations"`
	}
	require.NoError(t, json.Unmarshal([]byte(client.bodies[2]), &deal))
	assert.Equal(t, "Ann - Customer Feedback", deal.Properties["dealname"])
	assert.Equal(t, "default", deal.Properties["pipeline"])
	assert.Equal(t, "appointmentscheduled", deal.Properties["dealstage"])
	require.Len(t, deal.Associations, 1)
}

func TestHubSpotAdapter_Push_NoEmail(t *testing.T) {
	a := NewHubSpotAdapter(&scriptedClient{t: t})

	event := submissionFixture(domain.Answer{FieldID: "f1", FieldLabel: "Comment", Value: "hi"})

	_, err := a.Push(context.Background(),
		domain.Credentials{"accessToken": "tok"}, domain.IntegrationSettings{}, event)
	assert.Error(t, err)
}

func TestHubSpotAdapter_DiscoverContainers(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, `{"results":[{"id":"default","label":"Sales Pipeline"}]}`),
	}}
	a := NewHubSpotAdapter(client)

	containers, err := a.DiscoverContainers(context.Background(), domain.Credentials{"accessToken": "tok"})
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, domain.Container{ID: "default", Name: "Sales Pipeline", Kind: "pipeline"}, containers[0])
}
