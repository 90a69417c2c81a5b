package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"
)

const notionBaseURL = "https://api.notion.com/v1"
const notionVersion = "2022-06-28"

// notionTimestampProps are checked in order for a date property to stamp with
// the submission time.
var notionTimestampProps = []string{"Submitted", "Date", "Created", "Timestamp"}

// NotionAdapter creates a page per submission in a configured database.
// Database schemas are fetched live and cached between dispatches so the
// adapter can build correctly typed property envelopes.
type NotionAdapter struct {
	client    HTTPClient
	cache     ports.SchemaCache
	schemaTTL time.Duration
}

func NewNotionAdapter(client HTTPClient, cache ports.SchemaCache, schemaTTL time.Duration) *NotionAdapter {
	return &NotionAdapter{client: client, cache: cache, schemaTTL: schemaTTL}
}

func (a *NotionAdapter) Type() domain.IntegrationType {
	return domain.IntegrationNotion
}

func (a *NotionAdapter) headers(apiKey string) map[string]string {
	return map[string]string{
		"Authorization":  "Bearer " + apiKey,
		"Notion-Version": notionVersion,
	}
}

func (a *NotionAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("notion")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     notionBaseURL + "/users/me",
		headers: a.headers(apiKey),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("notion")
	}

	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := resp.Decode(&me); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	user := me.Name
	if user == "" {
		user = me.ID
	}
	return &domain.ProviderIdentity{Detail: map[string]string{"user": user}}, nil
}

// notionSchema is the subset of a database schema pushes need: property name
// to property type.
type notionSchema map[string]string

func (a *NotionAdapter) databaseSchema(ctx context.Context, apiKey, databaseID string) (notionSchema, error) {
	cacheKey := "notion:" + databaseID
	if cached, err := a.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		var schema notionSchema
		if json.Unmarshal(cached, &schema) == nil {
			return schema, nil
		}
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     notionBaseURL + "/databases/" + databaseID,
		headers: a.headers(apiKey),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("NOTION", resp.ErrorMessage("message"))
	}

	var db struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := resp.Decode(&db); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}

	schema := make(notionSchema, len(db.Properties))
	for name, prop := range db.Properties {
		schema[name] = prop.Type
	}

	// Cache writes are best effort; a miss just refetches.
	if buf, err := json.Marshal(schema); err == nil {
		_ = a.cache.Set(ctx, cacheKey, buf, a.schemaTTL)
	}
	return schema, nil
}

func (a *NotionAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("notion")
	}
	if settings.DatabaseID == "" {
		return nil, apperror.ErrMissingSetting("databaseId")
	}

	schema, err := a.databaseSchema(ctx, apiKey, settings.DatabaseID)
	if err != nil {
		return nil, err
	}

	properties := make(map[string]interface{})
	for _, ans := range event.Answers {
		target := settings.FieldMapping[ans.FieldID]
		propType, known := schema[target]
		if target == "" || !known || normalize.IsEmpty(ans.Value) {
			continue
		}
		if envelope := notionProperty(propType, ans.Value); envelope != nil {
			properties[target] = envelope
		}
	}
	for _, name := range notionTimestampProps {
		if schema[name] == "date" {
			properties[name] = map[string]interface{}{
				"date": map[string]string{"start": time.Now().UTC().Format(time.RFC3339)},
			}
			break
		}
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodPost,
		url:     notionBaseURL + "/pages",
		headers: a.headers(apiKey),
		body: map[string]interface{}{
			"parent":     map[string]string{"database_id": settings.DatabaseID},
			"properties": properties,
		},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("NOTION", resp.ErrorMessage("message"))
	}

	var page struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := resp.Decode(&page); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.PushResult{RecordID: page.ID, Detail: page.URL}, nil
}

// notionProperty wraps a submission value in the property envelope the
// target column's type expects. Unparseable dates and unknown shapes fall
// back to rich text; nil means the value cannot be represented.
func notionProperty(propType string, value interface{}) interface{} {
	text := func(s string) []map[string]interface{} {
		return []map[string]interface{}{{"text": map[string]string{"content": s}}}
	}

	switch propType {
	case "title":
		return map[string]interface{}{"title": text(normalize.Str(value))}
	case "rich_text":
		return map[string]interface{}{"rich_text": text(normalize.Str(value))}
	case "number":
		return map[string]interface{}{"number": normalize.Num(value)}
	case "select":
		return map[string]interface{}{"select": map[string]string{"name": normalize.Str(value)}}
	case "multi_select":
		items := normalize.StringList(value)
		options := make([]map[string]string, 0, len(items))
		for _, item := range items {
			options = append(options, map[string]string{"name": item})
		}
		return map[string]interface{}{"multi_select": options}
	case "date":
		day, ok := normalize.DateOnly(value)
		if !ok {
			return nil
		}
		return map[string]interface{}{"date": map[string]string{"start": day}}
	case "checkbox":
		return map[string]interface{}{"checkbox": normalize.Bool(value)}
	case "email":
		return map[string]interface{}{"email": normalize.Str(value)}
	case "phone_number":
		return map[string]interface{}{"phone_number": normalize.Str(value)}
	case "url":
		return map[string]interface{}{"url": normalize.Str(value)}
	}
	return map[string]interface{}{"rich_text": text(normalize.Str(value))}
}

// DiscoverContainers searches the workspace for databases the integration
// can write to.
func (a *NotionAdapter) DiscoverContainers(ctx context.Context, creds domain.Credentials) ([]domain.Container, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("notion")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodPost,
		url:     notionBaseURL + "/search",
		headers: a.headers(apiKey),
		body: map[string]interface{}{
			"filter": map[string]string{"property": "object", "value": "database"},
			"sort":   map[string]string{"direction": "descending", "timestamp": "last_edited_time"},
		},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("NOTION", resp.ErrorMessage("message"))
	}

	var search struct {
		Results []struct {
			ID    string `json:"id"`
			Title []struct {
				PlainText string `json:"plain_text"`
			} `json:"title"`
		} `json:"results"`
	}
	if err := resp.Decode(&search); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}

	containers := make([]domain.Container, 0, len(search.Results))
	for _, db := range search.Results {
		name := "Untitled"
		if len(db.Title) > 0 && db.Title[0].PlainText != "" {
			name = db.Title[0].PlainText
		}
		containers = append(containers, domain.Container{ID: db.ID, Name: name, Kind: "database"})
	}
	return containers, nil
}
