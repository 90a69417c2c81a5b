package provider

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/pkg/apperror"
)

// Discord caps embeds at 25 fields, names at 256 chars, values at 1024.
const (
	discordMaxFields     = 25
	discordMaxNameLen    = 256
	discordMaxValueLen   = 1024
	discordInlineMaxLen  = 50
	discordDefaultColor  = 0xf59e0b
	discordWebhookMarker = "discord.com/api/webhooks/"
)

// DiscordAdapter posts a rich embed per submission to a channel webhook.
type DiscordAdapter struct {
	client HTTPClient
}

func NewDiscordAdapter(client HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client}
}

func (a *DiscordAdapter) Type() domain.IntegrationType {
	return domain.IntegrationDiscord
}

func (a *DiscordAdapter) webhookURL(creds domain.Credentials) (string, error) {
	u := creds["webhookUrl"]
	if u == "" || !strings.Contains(u, discordWebhookMarker) {
		return "", apperror.ErrInvalidCredentials("discord")
	}
	return u, nil
}

func (a *DiscordAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	u, err := a.webhookURL(creds)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, a.client, apiRequest{method: http.MethodGet, url: u})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("discord")
	}

	var hook struct {
		Name      string `json:"name"`
		ChannelID string `json:"channel_id"`
		GuildID   string `json:"guild_id"`
	}
	if err := resp.Decode(&hook); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.ProviderIdentity{Detail: map[string]string{
		"name":       hook.Name,
		"channel_id": hook.ChannelID,
		"guild_id":   hook.GuildID,
	}}, nil
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Fields      []discordField `json:"fields"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

func (a *DiscordAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	u, err := a.webhookURL(creds)
	if err != nil {
		return nil, err
	}

	embed := buildSubmissionEmbed(event, settings)
	resp, err := call(ctx, a.client, apiRequest{
		method: http.MethodPost,
		url:    u,
		body:   map[string]interface{}{"embeds": []discordEmbed{embed}},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("DISCORD", resp.ErrorMessage("message"))
	}
	return &domain.PushResult{Detail: "notification sent"}, nil
}

func buildSubmissionEmbed(event *domain.SubmissionEvent, settings domain.IntegrationSettings) discordEmbed {
	embed := discordEmbed{
		Title:     "New submission: " + event.FormTitle,
		Color:     parseEmbedColor(settings.Color),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	embed.Footer.Text = "FormPulse"
	if settings.ViewURL != "" {
		embed.Description = "[View submission](" + settings.ViewURL + ")"
	}

	for _, ans := range event.Answers {
		if normalize.IsEmpty(ans.Value) {
			continue
		}
		if len(embed.Fields) == discordMaxFields {
			break
		}
		name := ans.FieldLabel
		if name == "" {
			name = ans.FieldID
		}
		if utf8.RuneCountInString(name) > discordMaxNameLen {
			name = truncateRunes(name, discordMaxNameLen)
		}
		value := normalize.Str(ans.Value)
		if utf8.RuneCountInString(value) > discordMaxValueLen {
			value = truncateRunes(value, discordMaxValueLen-3) + "..."
		}
		embed.Fields = append(embed.Fields, discordField{
			Name:   name,
			Value:  value,
			Inline: len(value) < discordInlineMaxLen,
		})
	}
	return embed
}

// truncateRunes cuts s to at most max runes. Discord counts limits in
// characters, and cutting on a byte offset could split a multi-byte rune.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// parseEmbedColor parses the "#rrggbb" setting, falling back to the product
// accent color.
func parseEmbedColor(hex string) int {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return discordDefaultColor
	}
	n, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return discordDefaultColor
	}
	return int(n)
}
