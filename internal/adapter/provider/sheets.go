package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/normalize"
	"formpulse-relay/pkg/apperror"
)

const (
	sheetsBaseURL      = "https://sheets.googleapis.com/v4/spreadsheets"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	sheetsDefaultSheet = "Sheet1"
)

// GoogleSheetsAdapter appends a row per submission, mapping answers to
// columns by matching field labels against the sheet's header row.
type GoogleSheetsAdapter struct {
	client HTTPClient
}

func NewGoogleSheetsAdapter(client HTTPClient) *GoogleSheetsAdapter {
	return &GoogleSheetsAdapter{client: client}
}

func (a *GoogleSheetsAdapter) Type() domain.IntegrationType {
	return domain.IntegrationGoogleSheets
}

func (a *GoogleSheetsAdapter) TestConnection(ctx context.Context, creds domain.Credentials) (*domain.ProviderIdentity, error) {
	token := creds["accessToken"]
	if token == "" {
		return nil, apperror.ErrInvalidCredentials("google_sheets")
	}

	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     googleUserInfoURL,
		headers: bearerHeaders(token),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrInvalidCredentials("google_sheets")
	}

	var user struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := resp.Decode(&user); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.ProviderIdentity{Detail: map[string]string{
		"email": user.Email,
		"name":  user.Name,
	}}, nil
}

func (a *GoogleSheetsAdapter) Push(ctx context.Context, creds domain.Credentials, settings domain.IntegrationSettings, event *domain.SubmissionEvent) (*domain.PushResult, error) {
	token := creds["accessToken"]
	if token == "" {
		return nil, apperror.ErrInvalidCredentials("google_sheets")
	}
	if settings.SpreadsheetID == "" {
		return nil, apperror.ErrMissingSetting("spreadsheetId")
	}

	sheet := settings.SheetName
	if sheet == "" {
		sheet = sheetsDefaultSheet
	}

	headers, err := a.headerRow(ctx, token, settings.SpreadsheetID, sheet)
	if err != nil {
		return nil, err
	}

	row := buildSheetRow(headers, event)
	rangeRef := fmt.Sprintf("%s!A:Z", sheet)
	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodPost,
		url:     fmt.Sprintf("%s/%s/values/%s:append", sheetsBaseURL, settings.SpreadsheetID, url.PathEscape(rangeRef)),
		headers: bearerHeaders(token),
		query:   url.Values{"valueInputOption": {"USER_ENTERED"}},
		body:    map[string]interface{}{"values": [][]string{row}},
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("GOOGLE_SHEETS", resp.ErrorMessage("error.message"))
	}

	var appended struct {
		Updates struct {
			UpdatedRange string `json:"updatedRange"`
		} `json:"updates"`
	}
	if err := resp.Decode(&appended); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	return &domain.PushResult{Detail: appended.Updates.UpdatedRange}, nil
}

func (a *GoogleSheetsAdapter) headerRow(ctx context.Context, token, spreadsheetID, sheet string) ([]string, error) {
	resp, err := call(ctx, a.client, apiRequest{
		method:  http.MethodGet,
		url:     fmt.Sprintf("%s/%s/values/%s", sheetsBaseURL, spreadsheetID, url.PathEscape(sheet+"!1:1")),
		headers: bearerHeaders(token),
	})
	if err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if !resp.OK() {
		return nil, apperror.ErrProviderRejected("GOOGLE_SHEETS", resp.ErrorMessage("error.message"))
	}

	var values struct {
		Values [][]string `json:"values"`
	}
	if err := resp.Decode(&values); err != nil {
		return nil, apperror.ErrDeliveryFailed(err)
	}
	if len(values.Values) == 0 {
		return nil, apperror.ErrProviderRejected("GOOGLE_SHEETS", "sheet has no header row")
	}
	return values.Values[0], nil
}

// buildSheetRow maps answers to columns by case-insensitive label match,
// leaving unmatched columns blank and stamping a Timestamp column when the
// sheet has one.
func buildSheetRow(headers []string, event *domain.SubmissionEvent) []string {
	row := make([]string, len(headers))
	for i, header := range headers {
		for _, ans := range event.Answers {
			label := ans.FieldLabel
			if label == "" {
				label = ans.FieldID
			}
			if strings.EqualFold(label, header) {
				row[i] = normalize.Str(ans.Value)
				break
			}
		}
		if strings.EqualFold(header, "timestamp") {
			row[i] = time.Now().UTC().Format(time.RFC3339)
		}
	}
	return row
}
