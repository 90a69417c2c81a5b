package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/pkg/apperror"
)

// Message body budgets: stop adding fields near 1400, never let a line push
// past 1500, hard provider cut at 1600.
const (
	twilioSoftBudget = 1400
	twilioLineBudget = 1500
	twilioHardLimit  = 1600
)

// twilioPriorityFields are listed first in the message body.
var twilioPriorityFields = []string{"name", "email", "phone", "message"}

// TwilioAdapter sends an SMS summary of each submission to the configured
// recipients, reporting per-recipient outcomes.
type TwilioAdapter struct {
	client HTTPClient
}

func NewTwilioAdapter(client HTTPClient) *TwilioAdapter {
	return &TwilioAdapter{client: client}
}

func (a *TwilioAdapter) Type() domain.IntegrationType {
	return domain.IntegrationTwilio
}

func twilioAccountURL(accountSid string) string {
	return "https://api.twilio.com/2010-04-01/Accounts/" + accountSid
}

func (a *TwilioAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	sid, token := creds["accountSid"], creds["authToken"]
	if sid == "" || token == "" {
		return nil, apperror.ErrInvalidCredentials("twilio")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:    http.MethodGet,
		url:       twilioAccountURL(sid) + ".json",
		basicUser: sid,
		basicPass: token,
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("twilio")
	}

	var account struct {
		FriendlyName string `json:"friendly_name"`
		Status       string `json:"status"`
	}
	if err := resp.Decode(&account); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.ProviderIdentity{Detail: map[string]string{
		"account_name": account.FriendlyName,
		"status":       account.Status,
	}}, nil
}

func (a *TwilioAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	sid, token, from := creds["accountSid"], creds["authToken"], creds["fromNumber"]
	if sid == "" || token == "" || from == "" {
		return nil, apperror.ErrInvalidCredentials("twilio")
	}
	if len(settings.Recipients) == 0 {
		return nil, apperror.ErrMissingSetting("recipients")
	}

	body := buildSubmissionMessage(event, settings.ViewURL)

	outcomes := make([]domain.RecipientOutcome, 0, len(settings.Recipients))
	delivered := 0
	lastErr := ""
	for _, recipient := range settings.Recipients {
		smsSid, err := a.sendSMS(ctx, sid, token, from, recipient, body)
		if err != nil {
			lastErr = err.Error()
			outcomes = append(outcomes, domain.RecipientOutcome{
				Recipient: recipient,
				Error:     err.Error(),
			})
			continue
		}
		delivered++
		outcomes = append(outcomes, domain.RecipientOutcome{
			Recipient: recipient,
			Success:   true,
			Detail:    smsSid,
		})
	}

	if delivered == 0 {
		return nil, apperror.ErrProviderRejected("TWILIO", lastErr)
	}
	return &domain.PushResult{
		Detail:     fmt.Sprintf("%d/%d messages sent", delivered, len(settings.Recipients)),
		Recipients: outcomes,
	}, nil
}

func (a *TwilioAdapter) sendSMS(ctx context.Context, sid, token, from, to, body string) (string, error) {
	if len(body) > twilioHardLimit {
		body = body[:twilioHardLimit]
	}

	form := url.Values{}
	form.Set("To", FormatPhoneNumber(to))
	form.Set("From", from)
	form.Set("Body", body)

	resp, err := call(ctx, a.client, apiRequest{
		method:    http.MethodPost,
		url:       twilioAccountURL(sid) + "/Messages.json",
		form:      form,
		basicUser: sid,
		basicPass: token,
	})
	if err != nil {
		return "", apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return "", apperror.ErrProviderRejected("TWILIO", resp.ErrorMessage("message"))
	}

	var message struct {
		Sid string `json:"sid"`
	}
	if err := resp.Decode(&message); err != nil {
		return "", apperror.ErrDeliveryFailed(err)
	}
	return message.Sid, nil
}

// FormatPhoneNumber normalizes a number to E.164, assuming US when the
// bare ten digits carry no country code.
func FormatPhoneNumber(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	cleaned := digits.String()
	if len(cleaned) == 10 {
		cleaned = "1" + cleaned
	}
	return "+" + cleaned
}

// buildSubmissionMessage renders the SMS body: identity-ish fields first,
// then the rest until the budget runs out.
func buildSubmissionMessage(event *domain.SubmissionEvent, viewURL string) string {
	var b strings.Builder
	b.WriteString("New submission: " + event.FormTitle + "\n\n")

	added := make(map[string]bool)
	line := func(ans domain.Answer) string {
		label := ans.FieldLabel
		if label == "" {
			label = ans.FieldID
		}
		return label + ": " + normalize.Str(ans.Value) + "\n"
	}

	for _, ans := range event.Answers {
		if normalize.IsEmpty(ans.Value) {
			continue
		}
		label := strings.ToLower(ans.FieldLabel)
		for _, pf := range twilioPriorityFields {
			if strings.Contains(label, pf) {
				b.WriteString(line(ans))
				added[ans.FieldID] = true
				break
			}
		}
	}
	for _, ans := range event.Answers {
		if added[ans.FieldID] || normalize.IsEmpty(ans.Value) || b.Len() >= twilioSoftBudget {
			continue
		}
		if l := line(ans); b.Len()+len(l) < twilioLineBudget {
			b.WriteString(l)
		}
	}

	if viewURL != "" {
		b.WriteString("\nView: " + viewURL)
	}
	return strings.TrimSpace(b.String())
}
