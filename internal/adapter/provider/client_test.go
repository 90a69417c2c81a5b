package provider

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpulse-relay/internal/core/domain"
)

// scriptedClient returns queued responses and records every request it saw.
type scriptedClient struct {
	t         *testing.T
	responses []*http.Response
	requests  []*http.Request
	bodies    []string
}

func (c *scriptedClient) Do(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	body := ""
	if req.Body != nil {
		buf, err := io.ReadAll(req.Body)
		require.NoError(c.t, err)
		body = string(buf)
	}
	c.bodies = append(c.bodies, body)

	require.NotEmpty(c.t, c.responses, "unexpected request %s %s", req.Method, req.URL)
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// memoryCache is an in-process SchemaCache for adapter tests.
type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	return c.data[key], nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func submissionFixture(answers ...domain.Answer) *domain.SubmissionEvent {
	return &domain.SubmissionEvent{
		FormTitle:   "Customer Feedback",
		Answers:     answers,
		CompletedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestRegistry_ResolvesEveryProvider(t *testing.T) {
	registry := NewRegistry(&scriptedClient{t: t}, newMemoryCache(), time.Minute)

	for _, typ := range []domain.IntegrationType{
		domain.IntegrationMailchimp, domain.IntegrationNotion, domain.IntegrationDiscord,
		domain.IntegrationHubSpot, domain.IntegrationAirtable, domain.IntegrationTwilio,
		domain.IntegrationGoogleSheets, domain.IntegrationSlack,
	} {
		adapter, err := registry.Get(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, adapter.Type())
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	registry := NewRegistry(&scriptedClient{t: t}, newMemoryCache(), time.Minute)

	_, err := registry.Get(domain.IntegrationType("FAXMACHINE"))
	assert.Error(t, err)
}

func TestAPIResponse_ErrorMessage(t *testing.T) {
	resp := &apiResponse{Status: 422, Body: []byte(`{"error":{"message":"Unknown field name"}}`)}
	assert.Equal(t, "Unknown field name", resp.ErrorMessage("error.message", "message"))

	resp = &apiResponse{Status: 400, Body: []byte(`{"message":"Invalid request"}`)}
	assert.Equal(t, "Invalid request", resp.ErrorMessage("error.message", "message"))

	resp = &apiResponse{Status: 503, Body: []byte(`not json`)}
	assert.Equal(t, http.StatusText(503), resp.ErrorMessage("message"))
}
