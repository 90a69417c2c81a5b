package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpulse-relay/internal/core/domain"
)

const discordTestURL = "https://discord.com/api/webhooks/123/token"

func TestDiscordAdapter_Push_CapsFieldsAtLimit(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{jsonResponse(204, "")}}
	a := NewDiscordAdapter(client)

	answers := make([]domain.Answer, 0, 30)
	for i := 0; i < 30; i++ {
		answers = append(answers, domain.Answer{
			FieldID:    fmt.Sprintf("f%d", i),
			FieldLabel: fmt.Sprintf("Question %d", i),
			Value:      fmt.Sprintf("answer %d", i),
		})
	}

	result, err := a.Push(context.Background(),
		domain.Credentials{"webhookUrl": discordTestURL},
		domain.IntegrationSettings{}, submissionFixture(answers...))
	require.NoError(t, err)
	assert.Equal(t, "notification sent", result.Detail)

	var payload struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal([]byte(client.bodies[0]), &payload))
	require.Len(t, payload.Embeds, 1)

	embed := payload.Embeds[0]
	assert.Equal(t, "New submission: Customer Feedback", embed.Title)
	assert.Len(t, embed.Fields, discordMaxFields)
	assert.True(t, embed.Fields[0].Inline)
}

func TestDiscordAdapter_Push_TruncatesLongValues(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{jsonResponse(204, "")}}
	a := NewDiscordAdapter(client)

	long := strings.Repeat("x", 3000)
	event := submissionFixture(domain.Answer{FieldID: "f1", FieldLabel: "Essay", Value: long})

	_, err := a.Push(context.Background(),
		domain.Credentials{"webhookUrl": discordTestURL},
		domain.IntegrationSettings{}, event)
	require.NoError(t, err)

	var payload struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal([]byte(client.bodies[0]), &payload))

	field := payload.Embeds[0].Fields[0]
	assert.Len(t, field.Value, discordMaxValueLen)
	assert.True(t, strings.HasSuffix(field.Value, "..."))
	assert.False(t, field.Inline)
}

func TestDiscordAdapter_Push_TruncatesOnRuneBoundaries(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{jsonResponse(204, "")}}
	a := NewDiscordAdapter(client)

	event := submissionFixture(domain.Answer{
		FieldID:    "f1",
		FieldLabel: strings.Repeat("ü", 300),
		Value:      strings.Repeat("é", 2000),
	})

	_, err := a.Push(context.Background(),
		domain.Credentials{"webhookUrl": discordTestURL},
		domain.IntegrationSettings{}, event)
	require.NoError(t, err)

	var payload struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	require.NoError(t, json.Unmarshal([]byte(client.bodies[0]), &payload))

	// A byte-offset cut would split the final two-byte rune and leave a
	// replacement character plus a short rune count on the wire.
	field := payload.Embeds[0].Fields[0]
	assert.True(t, utf8.ValidString(field.Name))
	assert.True(t, utf8.ValidString(field.Value))
	assert.Equal(t, discordMaxNameLen, utf8.RuneCountInString(field.Name))
	assert.Equal(t, discordMaxValueLen, utf8.RuneCountInString(field.Value))
	assert.True(t, strings.HasSuffix(field.Value, "..."))
}

func TestDiscordAdapter_Push_InvalidWebhookURL(t *testing.T) {
	a := NewDiscordAdapter(&scriptedClient{t: t})

	_, err := a.Push(context.Background(),
		domain.Credentials{"webhookUrl": "https://example.com/not-discord"},
		domain.IntegrationSettings{}, submissionFixture())
	assert.Error(t, err)
}

func TestParseEmbedColor(t *testing.T) {
	assert.Equal(t, 0x22c55e, parseEmbedColor("#22c55e"))
	assert.Equal(t, 0x22c55e, parseEmbedColor("22c55e"))
	assert.Equal(t, discordDefaultColor, parseEmbedColor(""))
	assert.Equal(t, discordDefaultColor, parseEmbedColor("#zzzzzz"))
}

func TestDiscordAdapter_TestConnection(t *testing.T) {
	client := &scriptedClient{t: t, responses: []*http.Response{
		jsonResponse(200, `{"name":"submissions","channel_id":"c1","guild_id":"g1"}`),
	}}
	a := NewDiscordAdapter(client)

	identity, err := a.TestConnection(context.Background(), domain.Credentials{"webhookUrl": discordTestURL})
	require.NoError(t, err)
	assert.Equal(t, "submissions", identity.Detail["name"])
	assert.Equal(t, http.MethodGet, client.requests[0].Method)
}
