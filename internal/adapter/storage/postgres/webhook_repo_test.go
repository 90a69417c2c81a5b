package postgres

import (
	"context"
	"testing"
	"time"

	"formpulse-relay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWebhook() *domain.Webhook {
	return &domain.Webhook{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Name:      "CRM sync",
		URL:       "https://example.com/hooks/crm",
		Secret:    "3f786850e387550fdab836ed7e6dc881de23001b",
		Events:    []string{domain.EventSubmissionCreated},
		Headers:   map[string]string{"X-Team": "growth"},
		Active:    true,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func webhookTestColumns() []string {
	return []string{"id", "account_id", "name", "url", "secret", "events", "headers", "active", "created_at", "updated_at"}
}

func webhookRow(w *domain.Webhook) *pgxmock.Rows {
	return pgxmock.NewRows(webhookTestColumns()).AddRow(
		w.ID, w.AccountID, w.Name, w.URL, w.Secret,
		w.Events, []byte(`{"X-Team":"growth"}`), w.Active,
		w.CreatedAt, w.UpdatedAt,
	)
}

func TestWebhookRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookRepo(mock)
	w := newTestWebhook()

	mock.ExpectExec("INSERT INTO webhooks").
		WithArgs(w.ID, w.AccountID, w.Name, w.URL, w.Secret,
			w.Events, []byte(`{"X-Team":"growth"}`), w.Active,
			w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookRepo(mock)
	w := newTestWebhook()

	mock.ExpectQuery("SELECT .+ FROM webhooks WHERE id").
		WithArgs(w.ID).
		WillReturnRows(webhookRow(w))

	result, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, w.URL, result.URL)
	assert.Equal(t, map[string]string{"X-Team": "growth"}, result.Headers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM webhooks WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(webhookTestColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRepo_ListActiveByEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookRepo(mock)
	w := newTestWebhook()

	mock.ExpectQuery("SELECT .+ FROM webhooks").
		WithArgs(w.AccountID, domain.EventSubmissionCreated).
		WillReturnRows(webhookRow(w))

	result, err := repo.ListActiveByEvent(context.Background(), w.AccountID, domain.EventSubmissionCreated)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, w.ID, result[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRepo_SetActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE webhooks SET active").
		WithArgs(false, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.SetActive(context.Background(), id, false)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWebhookRepo(mock)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM webhooks").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err = repo.Delete(context.Background(), id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
