package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/pkg/apperror"
)

const airtableBaseURL = "https://api.airtable.com/v0"

// Airtable accepts at most 10 records per create request.
const airtableBatchLimit = 10

// airtableTimestampFields are checked in order for a column to stamp with
// the submission time.
var airtableTimestampFields = []string{"Created", "Submitted", "Date", "Timestamp", "Created At"}

// AirtableAdapter syncs submissions as table rows. The base schema is
// fetched live and cached so values can be coerced to each column's type,
// and a configured unique field switches creates to find-or-update.
type AirtableAdapter struct {
	client    HTTPClient
	cache     ports.SchemaCache
	schemaTTL time.Duration
}

func NewAirtableAdapter(client HTTPClient, cache ports.SchemaCache, schemaTTL time.Duration) *AirtableAdapter {
	return &AirtableAdapter{client: client, cache: cache, schemaTTL: schemaTTL}
}

func (a *AirtableAdapter) Type() domain.IntegrationType {
	return domain.IntegrationAirtable
}

func (a *AirtableAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("airtable")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     airtableBaseURL + "/meta/whoami",
		headers: bearerHeaders(apiKey),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("airtable")
	}

	var who struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := resp.Decode(&who); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.ProviderIdentity{Detail: map[string]string{
		"user_id": who.ID,
		"email":   who.Email,
	}}, nil
}

// airtableTable is the cached slice of a base schema a push needs.
type airtableTable struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Fields []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

func (a *AirtableAdapter) baseSchema(ctx context.Context, apiKey, baseID string) ([]airtableTable, error) {
	cacheKey := "airtable:" + baseID
	if cached, err := a.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		var tables []airtableTable
		if json.Unmarshal(cached, &tables) == nil {
			return tables, nil
		}
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     fmt.Sprintf("%s/meta/bases/%s/tables", airtableBaseURL, baseID),
		headers: bearerHeaders(apiKey),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("AIRTABLE", resp.ErrorMessage("error.message", "error"))
	}

	var schema struct {
		Tables []airtableTable `json:"tables"`
	}
	if err := resp.Decode(&schema); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}

	// Cache writes are best effort; a miss just refetches.
	if buf, err := json.Marshal(schema.Tables); err == nil {
		_ = a.cache.Set(ctx, cacheKey, buf, a.schemaTTL)
	}
	return schema.Tables, nil
}

func (a *AirtableAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("airtable")
	}
	if settings.BaseID == "" {
		return nil, apperror.ErrMissingSetting("baseId")
	}
	if settings.TableID == "" {
		return nil, apperror.ErrMissingSetting("tableId")
	}

	// Schema failures degrade to untyped string columns rather than
	// dropping the row.
	fieldTypes := map[string]string{}
	tables, err := a.baseSchema(ctx, apiKey, settings.BaseID)
	if err == nil {
		for _, table := range tables {
			if table.ID != settings.TableID && table.Name != settings.TableID {
				continue
			}
			for _, f := range table.Fields {
				fieldTypes[f.Name] = f.Type
				fieldTypes[f.ID] = f.Type
			}
			break
		}
	}

	fields := make(map[string]interface{})
	for _, ans := range event.Answers {
		target := settings.FieldMapping[ans.FieldID]
		if target == "" || normalize.IsEmpty(ans.Value) {
			continue
		}
		fieldType := fieldTypes[target]
		if fieldType == "" {
			fieldType = "singleLineText"
		}
		if v := airtableValue(fieldType, ans.Value); v != nil {
			fields[target] = v
		}
	}
	for _, name := range airtableTimestampFields {
		if _, inSchema := fieldTypes[name]; inSchema && fields[name] == nil {
			fields[name] = time.Now().UTC().Format(time.RFC3339)
			break
		}
	}

	if settings.UniqueField != "" {
		if unique, ok := fields[settings.UniqueField]; ok {
			return a.upsertRecord(ctx, apiKey, settings, fields, normalize.Str(unique))
		}
	}
	return a.createRecord(ctx, apiKey, settings, fields)
}

// airtableValue coerces a submission value to the column type's wire shape.
func airtableValue(fieldType string, value interface{}) interface{} {
	switch fieldType {
	case "singleLineText", "multilineText", "richText", "url", "phoneNumber", "singleSelect":
		return normalize.Str(value)
	case "email":
		return strings.ToLower(normalize.Str(value))
	case "number", "currency", "percent":
		return normalize.Num(value)
	case "checkbox":
		return normalize.Bool(value)
	case "multipleSelects":
		return normalize.StringList(value)
	case "date":
		day, ok := normalize.DateOnly(value)
		if !ok {
			return nil
		}
		return day
	case "dateTime":
		ts, ok := normalize.DateTime(value)
		if !ok {
			return nil
		}
		return ts
	case "rating":
		return normalize.ClampRating(value, 0, 5)
	case "multipleAttachments":
		urls := normalize.StringList(value)
		attachments := make([]map[string]string, 0, len(urls))
		for _, u := range urls {
			attachments = append(attachments, map[string]string{"url": u})
		}
		return attachments
	}
	return normalize.Str(value)
}

func (a *AirtableAdapter) tableURL(settings domain.IntegrationSettings) string {
	return fmt.Sprintf("%s/%s/%s", airtableBaseURL, settings.BaseID, url.PathEscape(settings.TableID))
}

func (a *AirtableAdapter) createRecord(ctx context.Context, apiKey string, settings domain.IntegrationSettings, fields map[string]interface{}) (*domain.PushResult, error) {
	ids, err := a.createRecords(ctx, apiKey, settings, []map[string]interface{}{fields})
	if err != nil {
		return nil, err
	}
	recordID := ""
	if len(ids) > 0 {
		recordID = ids[0]
	}
	return &domain.PushResult{RecordID: recordID, Detail: "record created"}, nil
}

// createRecords posts rows to the records endpoint, splitting into requests
// of at most ten. Single-submission pushes go through the same path with one
// row.
func (a *AirtableAdapter) createRecords(ctx context.Context, apiKey string, settings domain.IntegrationSettings, rows []map[string]interface{}) ([]string, error) {
	ids := make([]string, 0, len(rows))
	for start := 0; start < len(rows); start += airtableBatchLimit {
		end := start + airtableBatchLimit
		if end > len(rows) {
			end = len(rows)
		}
		records := make([]map[string]interface{}, 0, end-start)
		for _, fields := range rows[start:end] {
			records = append(records, map[string]interface{}{"fields": fields})
		}

		resp, err := call(ctx, a.client, apiRequest{
			method:  http.MethodPost,
			url:     a.tableURL(settings),
			headers: bearerHeaders(apiKey),
			body:    map[string]interface{}{"records": records},
		})
		if err != nil {
			return ids, apperror.ErrDeliveryFailed(err)
		}
		if !resp.OK() {
			return ids, apperror.ErrProviderRejected("AIRTABLE", resp.ErrorMessage("error.message", "error"))
		}

		var created struct {
			Records []struct {
				ID string `json:"id"`
			} `json:"records"`
		}
		if err := resp.Decode(&created); err != nil {
			return ids, apperror.ErrDeliveryFailed(err)
		}
		for _, r := range created.Records {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// upsertRecord finds a row by the unique field's value and updates it,
// creating the row when none matches.
func (a *AirtableAdapter) upsertRecord(ctx context.Context, apiKey string, settings domain.IntegrationSettings, fields map[string]interface{}, uniqueValue string) (*domain.PushResult, error) {
	formula := fmt.Sprintf("{%s} = %q", settings.UniqueField, uniqueValue)
	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     a.tableURL(settings),
		headers: bearerHeaders(apiKey),
		query: url.Values{
			"filterByFormula": {formula},
			"maxRecords":      {"1"},
		},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("AIRTABLE", resp.ErrorMessage("error.message", "error"))
	}

	var listing struct {
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	if err := resp.Decode(&listing); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if len(listing.Records) == 0 {
		return a.createRecord(ctx, apiKey, settings, fields)
	}

	recordID := listing.Records[0].ID
	resp, err = call(ctx, a.client, apiRequest{
		method:  http.MethodPatch,
		url:     a.tableURL(settings) + "/" + recordID,
		headers: bearerHeaders(apiKey),
		body:    map[string]interface{}{"fields": fields},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("AIRTABLE", resp.ErrorMessage("error.message", "error"))
	}
	return &domain.PushResult{RecordID: recordID, Detail: "record updated"}, nil
}

// DiscoverContainers lists the bases the token can reach.
func (a *AirtableAdapter) DiscoverContainers(ctx context.Context, creds domain.Credentials) ([]domain.Container, error) {
	apiKey := creds["apiKey"]
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredentials("airtable")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     airtableBaseURL + "/meta/bases",
		headers: bearerHeaders(apiKey),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("AIRTABLE", resp.ErrorMessage("error.message", "error"))
	}

	var bases struct {
		Bases []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"bases"`
	}
	if err := resp.Decode(&bases); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}

	containers := make([]domain.Container, 0, len(bases.Bases))
	for _, b := range bases.Bases {
		containers = append(containers, domain.Container{ID: b.ID, Name: b.Name, Kind: "base"})
	}
	return containers, nil
}
