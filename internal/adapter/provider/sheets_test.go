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

func TestBuildSheetRow_MatchesHeadersCaseInsensitively(t *testing.T) {
	headers := []string{"name", "EMAIL", "Timestamp", "Unmapped"}
	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"},
		domain.Answer{FieldID: "f2", FieldLabel: "Email", Value: "ann@example.com"},
	)

	row := buildSheetRow(headers, event)
	require.Len(t, row, 4)
	assert.Equal(t, "Ann", row[0])
	assert.Equal(t, "ann@example.com", row[1])
	assert.NotEmpty(t, row[2])
	assert.Empty(t, row[3])
}

func TestGoogleSheetsAdapter_Push_AppendsRow(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, `{"values":[["Name","Email"]]}`),
		jsonResponse(200, `{"updates":{"updatedRange":"Sheet1!A5:B5"}}`),
	}}
	a := NewGoogleSheetsAdapter(client)

	event := submissionFixture(
		domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"},
		domain.Answer{FieldID: "f2", FieldLabel: "Email", Value: "ann@example.com"},
	)

	result, err := a.Push(context.Background(),
		domain.Credentials{"accessToken": "tok"},
		domain.IntegrationSettings{SpreadsheetID: "sheet1"}, event)
	require.NoError(t, err)
	assert.Equal(t, "Sheet1!A5:B5", result.Detail)

	require.Len(t, client.requests, 2)
	assert.Contains(t, client.requests[0].URL.Path, "/values/")
	appendReq := client.requests[1]
	assert.Equal(t, http.MethodPost, appendReq.Method)
	assert.Equal(t, "USER_ENTERED", appendReq.URL.Query().Get("valueInputOption"))

	var body struct {
		Values [][]string `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(client.bodies[1]), &body))
	assert.Equal(t, [][]string{{"Ann", "ann@example.com"}}, body.Values)
}

func TestGoogleSheetsAdapter_Push_NoHeaderRow(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, `{}`),
	}}
	a := NewGoogleSheetsAdapter(client)

	_, err := a.Push(context.Background(),
		domain.Credentials{"accessToken": "tok"},
		domain.IntegrationSettings{SpreadsheetID: "sheet1"}, submissionFixture())
	assert.Error(t, err)
}

func TestGoogleSheetsAdapter_Push_MissingSpreadsheet(t *testing.T) {
	a := NewGoogleSheetsAdapter(&scriptedClient{t: t})

	_, err := a.Push(context.Background(),
		domain.Credentials{"accessToken": "tok"}, domain.IntegrationSettings{}, submissionFixture())
	assert.Error(t, err)
}
