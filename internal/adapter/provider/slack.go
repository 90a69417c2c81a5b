package provider

import (
	"context"
	"net/http"
	"strings"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/pkg/apperror"
)

const slackWebhookMarker = "hooks.slack.com/"

// SlackAdapter posts a Block Kit message per submission to an incoming
// webhook.
type SlackAdapter struct {
	client HTTPClient
}

func NewSlackAdapter(client HTTPClient) *SlackAdapter {
	return &SlackAdapter{client: client}
}

func (a *SlackAdapter) Type() domain.IntegrationType {
	return domain.IntegrationSlack
}

func (a *SlackAdapter) webhookURL(creds domain.Credentials) (string, error) {
	u := creds["webhookUrl"]
	if u == "" || !strings.Contains(u, slackWebhookMarker) {
		return "", apperror.ErrInvalidCredentials("slack")
	}
	return u, nil
}

// TestConnection posts a short message; incoming webhooks expose no
// read-only endpoint to check against.
func (a *SlackAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	u, err := a.webhookURL(creds)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, a.client, apiRequest{
		method: http.MethodPost,
		url:    u,
		body:   map[string]string{"text": "FormPulse connected. Submission notifications will arrive here."},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("slack")
	}
	return &domain.ProviderIdentity{Detail: map[string]string{"status": "ok"}}, nil
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (a *SlackAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	u, err := a.webhookURL(creds)
	if err != nil {
		return nil, err
	}

	resp, err := call(ctx, a.client, apiRequest{
		method: http.MethodPost,
		url:    u,
		body: map[string]interface{}{
			"text":   "New submission for " + event.FormTitle,
			"blocks": buildSubmissionBlocks(event),
		},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("SLACK", strings.TrimSpace(string(resp.Body)))
	}
	return &domain.PushResult{Detail: "notification sent"}, nil
}

// buildSubmissionBlocks renders a header, a divider, and the answers as
// mrkdwn fields paired two per section.
func buildSubmissionBlocks(event *domain.SubmissionEvent) []slackBlock {
	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "New submission: " + event.FormTitle}},
		{Type: "divider"},
	}

	fields := make([]slackText, 0, len(event.Answers))
	for _, ans := range event.Answers {
		label := ans.FieldLabel
		if label == "" {
			label = ans.FieldID
		}
		value := normalize.Str(ans.Value)
		if value == "" {
			value = "-"
		}
		fields = append(fields, slackText{Type: "mrkdwn", Text: "*" + label + "*\n" + value})
	}

	for i := 0; i < len(fields); i += 2 {
		end := i + 2
		if end > len(fields) {
			end = len(fields)
		}
		blocks = append(blocks, slackBlock{Type: "section", Fields: fields[i:end]})
	}
	return blocks
}
