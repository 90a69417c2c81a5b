package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/pkg/apperror"
)

// MailchimpAdapter upserts submitters as audience members. The datacenter is
// encoded in the API key suffix after the dash.
type MailchimpAdapter struct {
	client HTTPClient
}

func NewMailchimpAdapter(client HTTPClient) *MailchimpAdapter {
	return &MailchimpAdapter{client: client}
}

func (a *MailchimpAdapter) Type() domain.IntegrationType {
	return domain.IntegrationMailchimp
}

func (a *MailchimpAdapter) baseURL(apiKey string) string {
	dc := "us1"
	if parts := strings.Split(apiKey, "-"); len(parts) > 1 && parts[1] != "" {
		dc = parts[1]
	}
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", dc)
}

// subscriberHash is the member identifier Mailchimp derives from the lowered
// email address.
func subscriberHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])
}

func (a *MailchimpAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("mailchimp")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:    http.MethodGet,
		url:       a.baseURL(apiKey) + "/ping",
		basicUser: "anystring",
		basicPass: apiKey,
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("mailchimp")
	}

	var ping struct {
		HealthStatus string `json:"health_status"`
	}
	if err := resp.Decode(&ping); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.ProviderIdentity{Detail: map[string]string{"health": ping.HealthStatus}}, nil
}

func (a *MailchimpAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("mailchimp")
	}
	if settings.ListID == "" {
		return nil, apperror.ErrMissingSetting("listId")
	}

	email, ok := normalize.ResolveEmail(event, settings.FieldMapping)
	if !ok {
		return nil, apperror.ErrMissingIdentityField("mailchimp")
	}

	member := map[string]interface{}{
		"email_address": email,
		"status_if_new": "subscribed",
		"merge_fields":  a.mergeFields(event, settings.FieldMapping),
	}
	if len(settings.Tags) > 0 {
		member["tags"] = settings.Tags
	}

	target := fmt.Sprintf("%s/lists/%s/members/%s",
		a.baseURL(apiKey), settings.ListID, subscriberHash(email))
	resp, err := call(ctx, a.client, apiRequest{
		method:    http.MethodPut,
		url:       target,
		body:      member,
		basicUser: "anystring",
		basicPass: apiKey,
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("MAILCHIMP", resp.ErrorMessage("detail", "title"))
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := resp.Decode(&created); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.PushResult{
		RecordID: created.ID,
		Detail:   "member " + created.Status,
	}, nil
}

// mergeFields builds the audience merge-field payload: explicit mappings win,
// then label aliases fill the standard FNAME/LNAME/PHONE/COMPANY slots.
func (a *MailchimpAdapter) mergeFields(event *domain.SubmissionEvent, mapping map[string]string) map[string]string {
	aliasMerge := map[string]string{
		"firstname": "FNAME",
		"lastname":  "LNAME",
		"phone":     "PHONE",
		"company":   "COMPANY",
	}

	fields := make(map[string]string)
	for _, ans := range event.Answers {
		if normalize.IsEmpty(ans.Value) {
			continue
		}
		if target := mapping[ans.FieldID]; target != "" && target != "email" {
			fields[strings.ToUpper(target)] = normalize.Str(ans.Value)
			continue
		}
		label := ans.FieldLabel
		if label == "" {
			label = ans.FieldID
		}
		if alias, ok := normalize.MatchAlias(label); ok {
			if tag, ok := aliasMerge[alias]; ok && fields[tag] == "" {
				fields[tag] = normalize.Str(ans.Value)
			}
		}
	}
	return fields
}

// DiscoverContainers lists the account's audiences for the configuration UI.
func (a *MailchimpAdapter) DiscoverContainers(ctx context.Context, creds domain.Credentials) ([]domain.Container, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("mailchimp")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:    http.MethodGet,
		url:       a.baseURL(apiKey) + "/lists",
		query:     url.Values{"count": {"100"}},
		basicUser: "anystring",
		basicPass: apiKey,
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("MAILCHIMP", resp.ErrorMessage("detail", "title"))
	}

	var lists struct {
		Lists []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"lists"`
	}
	if err := resp.Decode(&lists); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}

	containers := make([]domain.Container, 0, len(lists.Lists))
	for _, l := range lists.Lists {
		containers = append(containers, domain.Container{ID: l.ID, Name: l.Name, Kind: "list"})
	}
	return containers, nil
}
