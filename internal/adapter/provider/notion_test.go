package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpulse-relay/internal/core/domain"
)

const notionSchemaBody = `{"properties":{
	"Name":{"type":"title"},
	"Email":{"type":"email"},
	"Score":{"type":"number"},
	"Interests":{"type":"multi_select"},
	"Submitted":{"type":"date"}}}`

func TestNotionProperty_Envelopes(t *testing.T) {
	title := notionProperty("title", "Ann").(map[string]interface{})
	assert.NotNil(t, title["title"])

	number := notionProperty("number", "41.5").(map[string]interface{})
	assert.Equal(t, 41.5, number["number"])

	multi := notionProperty("multi_select", []interface{}{"go", "sql"}).(map[string]interface{})
	assert.Equal(t,
		[]map[string]string{{"name": "go"}, {"name": "sql"}},
		multi["multi_select"])

	date := notionProperty("date", "2026-03-14T09:30:00Z").(map[string]interface{})
	assert.Equal(t, map[string]string{"start": "2026-03-14"}, date["date"])
	assert.Nil(t, notionProperty("date", "never"))

	checkbox := notionProperty("checkbox", "yes").(map[string]interface{})
	assert.Equal(t, true, checkbox["checkbox"])

	// Unknown property types degrade to rich text.
	fallback := notionProperty("rollup", "v").(map[string]interface{})
	assert.NotNil(t, fallback["rich_text"])
}

func TestNotionAdapter_Push_CreatesPage(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, notionSchemaBody),
		jsonResponse(200, `{"id":"page1","url":"https://notion.so/page1"}`),
	}}
	a := NewNotionAdapter(client, newMemoryCache(), time.Minute)

	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"},
		domain.Answer{FieldID: "f2", FieldLabel: "Email", Value: "ann@example.com"},
		domain.Answer{FieldID: "f3", FieldLabel: "Notes", Value: "unmapped"},
	)
	settings := domain.IntegrationSettings{
		DatabaseID:   "db1",
		FieldMapping: map[string]string{"f1": "Name", "f2": "Email"},
	}

	result, err := a.Push(context.Background(), domain.Credentials{"apiKey": "secret"}, settings, event)
	require.NoError(t, err)
	assert.Equal(t, "page1", result.RecordID)

	require.Len(t, client.requests, 2)
	schemaReq := client.requests[0]
	assert.Equal(t, notionVersion, schemaReq.Header.Get("Notion-Version"))

	var page struct {
		Parent     map[string]string      `json:"parent"`
		Properties map[string]interface{} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(client.bodies[1]), &page))
	assert.Equal(t, "db1", page.Parent["database_id"])
	assert.Contains(t, page.Properties, "Name")
	assert.Contains(t, page.Properties, "Email")
	// Unmapped answers never reach the database; the Submitted date column
	// is stamped automatically.
	assert.NotContains(t, page.Properties, "Notes")
	assert.Contains(t, page.Properties, "Submitted")
}

func TestNotionAdapter_Push_SchemaCached(t *testing.T) {
	cache := newMemoryCache()
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, notionSchemaBody),
		jsonResponse(200, `{"id":"p1"}`),
		jsonResponse(200, `{"id":"p2"}`),
	}}
	a := NewNotionAdapter(client, cache, time.Minute)

	event := submissionFixture(domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"})
	settings := domain.IntegrationSettings{
		DatabaseID:   "db1",
		FieldMapping: map[string]string{"f1": "Name"},
	}
	creds := domain.Credentials{"apiKey": "secret"}

	_, err := a.Push(context.Background(), creds, settings, event)
	require.NoError(t, err)
	_, err = a.Push(context.Background(), creds, settings, event)
	require.NoError(t, err)

	assert.Len(t, client.requests, 3)
}

func TestNotionAdapter_DiscoverContainers(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, `{"results":[
			{"id":"db1","title":[{"plain_text":"Leads"}]},
			{"id":"db2","title":[]}]}`),
	}}
	a := NewNotionAdapter(client, newMemoryCache(), time.Minute)

	containers, err := a.DiscoverContainers(context.Background(), domain.Credentials{"apiKey": "secret"})
	require.NoError(t, err)
	require.Len(t, containers, 2)
	assert.Equal(t, "Leads", containers[0].Name)
	assert.Equal(t, "Untitled", containers[1].Name)
	assert.Equal(t, "database", containers[0].Kind)
}
