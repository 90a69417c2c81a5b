package provider

import (
	"context"
	"net/http"
	"strings"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/pkg/apperror"
)

const hubspotBaseURL = "https://api.hubapi.com"

// HubSpotAdapter upserts a CRM contact per submission and optionally opens
// a deal associated with it. Fields map through explicit "contact." and
// "deal." prefixes, with label aliases filling the standard contact
// properties when no mapping is configured.
type HubSpotAdapter struct {
	client HTTPClient
}

func NewHubSpotAdapter(client HTTPClient) *HubSpotAdapter {
	return &HubSpotAdapter{client: client}
}

func (a *HubSpotAdapter) Type() domain.IntegrationType {
	return domain.IntegrationHubSpot
}

func (a *HubSpotAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	token := creds["accessToken"]
	if token == "" {
		return nil, apperror.ErrInvalidCredentials("hubspot")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     hubspotBaseURL + "/account-info/v3/details",
		headers: bearerHeaders(token),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("hubspot")
	}

	var account struct {
		PortalID    int64  `json:"portalId"`
		AccountType string `json:"accountType"`
	}
	if err := resp.Decode(&account); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.ProviderIdentity{Detail: map[string]string{
		"portal_id":    normalize.Str(int(account.PortalID)),
		"account_type": account.AccountType,
	}}, nil
}

func (a *HubSpotAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	token := creds["accessToken"]
	if token == "" {
		return nil, apperror.ErrInvalidCredentials("hubspot")
	}

	contactProps, dealProps := mapContactProperties(event, settings.FieldMapping)
	email, ok := normalize.ResolveEmail(event, settings.FieldMapping)
	if !ok {
		return nil, apperror.ErrMissingIdentityField("hubspot")
	}
	contactProps["email"] = email

	if event.FormTitle != "" {
		contactProps["hs_lead_status"] = "NEW"
		contactProps["recent_conversion_event_name"] = event.FormTitle
	}

	contactID, updated, err := a.upsertContact(ctx, token, email, contactProps)
	if err != nil {
		return nil, err
	}

	detail := "contact created"
	if updated {
		detail = "contact updated"
	}

	if len(dealProps) > 0 || settings.CreateDeal {
		if dealProps == nil {
			dealProps = make(map[string]string)
		}
		if dealProps["dealname"] == "" {
			who := contactProps["firstname"]
			if who == "" {
				who = email
			}
			title := event.FormTitle
			if title == "" {
				title = "Form Submission"
			}
			dealProps["dealname"] = who + " - " + title
		}
		if dealProps["pipeline"] == "" {
			dealProps["pipeline"] = "default"
		}
		if dealProps["dealstage"] == "" {
			dealProps["dealstage"] = "appointmentscheduled"
		}
		if err := a.createDeal(ctx, token, contactID, dealProps); err != nil {
			return nil, err
		}
		detail += ", deal created"
	}

	return &domain.PushResult{RecordID: contactID, Detail: detail}, nil
}

// mapContactProperties splits the mapped answers into contact and deal
// property sets, then fills unclaimed standard contact slots by label alias.
func mapContactProperties(event *domain.SubmissionEvent, mapping map[string]string) (contact, deal map[string]string) {
	contact = make(map[string]string)
	deal = make(map[string]string)

	for _, ans := range event.Answers {
		target := mapping[ans.FieldID]
		if target == "" || target == "email" || normalize.IsEmpty(ans.Value) {
			continue
		}
		value := normalize.Str(ans.Value)
		switch {
		case strings.HasPrefix(target, "contact."):
			contact[strings.TrimPrefix(target, "contact.")] = value
		case strings.HasPrefix(target, "deal."):
			deal[strings.TrimPrefix(target, "deal.")] = value
		default:
			contact[target] = value
		}
	}

	for _, ans := range event.Answers {
		if normalize.IsEmpty(ans.Value) {
			continue
		}
		label := ans.FieldLabel
		if label == "" {
			label = ans.FieldID
		}
		if target, ok := normalize.MatchAlias(label); ok && contact[target] == "" {
			contact[target] = normalize.Str(ans.Value)
		}
	}
	return contact, deal
}

// upsertContact searches by email and updates the match, creating the
// contact when none exists. Returns the contact id and whether it updated.
func (a *HubSpotAdapter) upsertContact(ctx context.Context, token, email string, props map[string]string) (string, bool, error) {
	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodPost,
		url:     hubspotBaseURL + "/crm/v3/objects/contacts/search",
		headers: bearerHeaders(token),
		body: map[string]interface{}{
			"filterGroups": []map[string]interface{}{{
				"filters": []map[string]string{{
					"propertyName": "email",
					"operator":     "EQ",
					"value":        email,
				}},
			}},
		},
	})
	if err != nil {
		return "", false, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return "", false, apperror.ErrProviderRejected("HUBSPOT", resp.ErrorMessage("message"))
	}

	var search struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := resp.Decode(&search); err != nil {
		return "", false, apperror.ErrDeliveryFailed(err)
	}

	if len(search.Results) > 0 {
		id := search.Results[0].ID
		resp, err = call(ctx, a.client, apiRequest{
			method:  http.MethodPatch,
			url:     hubspotBaseURL + "/crm/v3/objects/contacts/" + id,
			headers: bearerHeaders(token),
			body:    map[string]interface{}{"properties": props},
		})
		if err != nil {
			return "", false, apperror.ErrDeliveryFailed(err)
		}
		if !resp.OK() {
			return "", false, apperror.ErrProviderRejected("HUBSPOT", resp.ErrorMessage("message"))
		}
		return id, true, nil
	}

	resp, err = call(ctx, a.client, apiRequest{
		method:  http.MethodPost,
		url:     hubspotBaseURL + "/crm/v3/objects/contacts",
		headers: bearerHeaders(token),
		body:    map[string]interface{}{"properties": props},
	})
	if err != nil {
		return "", false, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return "", false, apperror.ErrProviderRejected("HUBSPOT", resp.ErrorMessage("message"))
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&created); err != nil {
		return "", false, apperror.ErrDeliveryFailed(err)
	}
	return created.ID, false, nil
}

func (a *HubSpotAdapter) createDeal(ctx context.Context, token, contactID string, props map[string]string) error {
	body := map[string]interface{}{"properties": props}
	if contactID != "" {
		body["associations"] = []map[string]interface{}{{
			"to": map[string]string{"id": contactID},
			"types": []map[string]interface{}{{
				"associationCategory": "HUBSPOT_DEFINED",
				"associationTypeId":   3,
			}},
		}}
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodPost,
		url:     hubspotBaseURL + "/crm/v3/objects/deals",
		headers: bearerHeaders(token),
		body:    body,
	})
	if err != nil {
		return apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return apperror.ErrProviderRejected("HUBSPOT", resp.ErrorMessage("message"))
	}
	return nil
}

// DiscoverContainers lists the deal pipelines for the configuration UI.
func (a *HubSpotAdapter) DiscoverContainers(ctx context.Context, creds domain.Credentials) ([]domain.Container, error) {
	token := creds["accessToken"]
	if token == "" {
		return nil, apperror.ErrInvalidCredentials("hubspot")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     hubspotBaseURL + "/crm/v3/pipelines/deals",
		headers: bearerHeaders(token),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("HUBSPOT", resp.ErrorMessage("message"))
	}

	var pipelines struct {
		Results []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"results"`
	}
	if err := resp.Decode(&pipelines); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}

	containers := make([]domain.Container, 0, len(pipelines.Results))
	for _, p := range pipelines.Results {
		containers = append(containers, domain.Container{ID: p.ID, Name: p.Label, Kind: "pipeline"})
	}
	return containers, nil
}
