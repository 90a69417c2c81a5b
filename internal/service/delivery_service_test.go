package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"formpulse-relay/config"
	"formpulse-relay/internal/core/domain"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		FailureThreshold: 10,
		FailureWindow:    24 * time.Hour,
		WebhookTimeout:   30 * time.Second,
		TestTimeout:      10 * time.Second,
		MaxConcurrency:   8,
	}
}

type deliveryFixture struct {
	logRepo         *mocks.MockDeliveryLogRepository
	integrationRepo *mocks.MockIntegrationRepository
	webhookRepo     *mocks.MockWebhookRepository
	hookRepo        *mocks.MockHookSubscriptionRepository
	svc             ports.DeliveryDispatcher
}

func newDeliveryFixture(ctrl *gomock.Controller, client HTTPClient) *deliveryFixture {
	f := &deliveryFixture{
		logRepo:         mocks.NewMockDeliveryLogRepository(ctrl),
		integrationRepo: mocks.NewMockIntegrationRepository(ctrl),
		webhookRepo:     mocks.NewMockWebhookRepository(ctrl),
		hookRepo:        mocks.NewMockHookSubscriptionRepository(ctrl),
	}
	f.svc = NewDeliveryService(
		f.logRepo, f.integrationRepo, f.webhookRepo, f.hookRepo,
		NewHMACSignatureService(), client, testDispatchConfig(), newTestLogger(),
	)
	return f
}

func okResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestSubmissionEnvelope_Shape(t *testing.T) {
	ev := &domain.SubmissionEvent{
		SubmissionID: uuid.New(),
		FormID:       uuid.New(),
		FormTitle:    "Contact Us",
		FormPublicID: "contact-us",
		Answers: []domain.Answer{
			{FieldID: "f1", FieldLabel: "Email", FieldType: "email", Value: "ann@example.com"},
		},
		CompletedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(NewSubmissionEnvelope(domain.EventSubmissionCreated, ev))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, domain.EventSubmissionCreated, decoded["event"])

	sub := decoded["submission"].(map[string]interface{})
	assert.Equal(t, ev.SubmissionID.String(), sub["id"])
	data := sub["data"].(map[string]interface{})
	assert.Equal(t, "ann@example.com", data["f1"])
	_, hasAnswers := sub["answers"]
	assert.False(t, hasAnswers, "webhook envelopes omit the raw answers")

	hook := NewHookEnvelope(domain.EventSubmissionCreated, ev)
	require.NotNil(t, hook.Submission)
	assert.Len(t, hook.Submission.Answers, 1)

	form := NewFormEnvelope(domain.EventFormPublished, ev.FormRef())
	assert.Nil(t, form.Submission)
}

func TestDeliveryService_Deliver_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var gotReq *http.Request
	var gotBody []byte
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		gotReq = req
		gotBody, _ = io.ReadAll(req.Body)
		return okResponse(200), nil
	}}
	f := newDeliveryFixture(ctrl, client)

	id := uuid.New()
	f.logRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *domain.DeliveryLog) error {
			assert.Equal(t, domain.DestinationWebhook, l.DestinationKind)
			assert.Equal(t, id, l.DestinationID)
			assert.True(t, l.Success)
			require.NotNil(t, l.StatusCode)
			assert.Equal(t, 200, *l.StatusCode)
			return nil
		})

	outcome := f.svc.Deliver(context.Background(), ports.DeliveryTarget{
		Kind:    domain.DestinationWebhook,
		ID:      id,
		URL:     "https://example.com/hook",
		Secret:  "shh",
		Headers: map[string]string{"X-Custom": "yes", "X-FormPulse-Signature": "forged"},
		Event:   domain.EventSubmissionCreated,
		Payload: map[string]string{"hello": "world"},
	})

	assert.True(t, outcome.Success)
	assert.False(t, outcome.Deactivated)
	require.NotNil(t, gotReq)

	// Custom headers pass through, but never the required two.
	assert.Equal(t, "yes", gotReq.Header.Get("X-Custom"))
	assert.Equal(t, domain.EventSubmissionCreated, gotReq.Header.Get(HeaderEvent))
	assert.Equal(t, "application/json", gotReq.Header.Get("Content-Type"))

	// The signature is the HMAC of the exact request body bytes.
	sig := NewHMACSignatureService()
	assert.Equal(t, sig.Sign("shh", gotBody), gotReq.Header.Get(HeaderSignature))
	assert.NotEqual(t, "forged", gotReq.Header.Get(HeaderSignature))
}

func TestDeliveryService_Deliver_FailureBelowThreshold(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return okResponse(500), nil
	}}
	f := newDeliveryFixture(ctrl, client)
	id := uuid.New()

	f.logRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *domain.DeliveryLog) error {
			assert.False(t, l.Success)
			require.NotNil(t, l.Error)
			return nil
		})
	f.logRepo.EXPECT().CountRecentFailures(gomock.Any(), domain.DestinationHook, id, 24*time.Hour).
		Return(3, nil)

	outcome := f.svc.Deliver(context.Background(), ports.DeliveryTarget{
		Kind: domain.DestinationHook, ID: id,
		URL: "https://example.com/hook", Secret: "shh",
		Event: domain.EventSubmissionCreated, Payload: map[string]string{},
	})

	assert.False(t, outcome.Success)
	assert.False(t, outcome.Deactivated)
	require.NotNil(t, outcome.StatusCode)
	assert.Equal(t, 500, *outcome.StatusCode)
	assert.Contains(t, outcome.Error, "500")
}

func TestDeliveryService_Deliver_DeactivatesAtThreshold(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return okResponse(503), nil
	}}
	f := newDeliveryFixture(ctrl, client)
	id := uuid.New()

	f.logRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.logRepo.EXPECT().CountRecentFailures(gomock.Any(), domain.DestinationWebhook, id, 24*time.Hour).
		Return(10, nil)
	f.webhookRepo.EXPECT().SetActive(gomock.Any(), id, false).Return(nil)

	outcome := f.svc.Deliver(context.Background(), ports.DeliveryTarget{
		Kind: domain.DestinationWebhook, ID: id,
		URL: "https://example.com/hook", Secret: "shh",
		Event: domain.EventSubmissionCreated, Payload: map[string]string{},
	})

	assert.False(t, outcome.Success)
	assert.True(t, outcome.Deactivated)
}

func TestDeliveryService_Deliver_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}}
	f := newDeliveryFixture(ctrl, client)
	id := uuid.New()

	f.logRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, l *domain.DeliveryLog) error {
			assert.Nil(t, l.StatusCode, "no status on transport failure")
			assert.False(t, l.Success)
			return nil
		})
	f.logRepo.EXPECT().CountRecentFailures(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(1, nil)

	outcome := f.svc.Deliver(context.Background(), ports.DeliveryTarget{
		Kind: domain.DestinationWebhook, ID: id,
		URL: "https://example.com/hook", Secret: "shh",
		Event: domain.EventSubmissionCreated, Payload: map[string]string{},
	})

	assert.False(t, outcome.Success)
	assert.Nil(t, outcome.StatusCode)
	assert.Contains(t, outcome.Error, "connection refused")
}

func TestDeliveryService_Deliver_LogWrittenOnCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return okResponse(200), nil
	}}
	f := newDeliveryFixture(ctrl, client)

	logged := false
	f.logRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *domain.DeliveryLog) error {
			// The log write runs on a detached context.
			assert.NoError(t, ctx.Err())
			logged = true
			return nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The caller hands the dispatcher a detached context for in-flight work;
	// the row must still be written even when the parent was cancelled.
	f.svc.Deliver(context.WithoutCancel(ctx), ports.DeliveryTarget{
		Kind: domain.DestinationWebhook, ID: uuid.New(),
		URL: "https://example.com/hook", Secret: "shh",
		Event: domain.EventSubmissionCreated, Payload: map[string]string{},
	})
	assert.True(t, logged)
}

func TestDeliveryService_RecordAttempt_DeactivatesIntegration(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newDeliveryFixture(ctrl, &mockHTTPClient{})
	id := uuid.New()

	f.logRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.logRepo.EXPECT().CountRecentFailures(gomock.Any(), domain.DestinationIntegration, id, 24*time.Hour).
		Return(12, nil)
	f.integrationRepo.EXPECT().SetActive(gomock.Any(), id, false).Return(nil)

	deactivated := f.svc.RecordAttempt(context.Background(), ports.AttemptRecord{
		Kind:  domain.DestinationIntegration,
		ID:    id,
		Event: domain.EventSubmissionCreated,
		Error: "API key invalid",
	})
	assert.True(t, deactivated)
}

func TestDeliveryService_RecordAttempt_SuccessSkipsPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newDeliveryFixture(ctrl, &mockHTTPClient{})

	f.logRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	// No CountRecentFailures expectation: success never consults the policy.

	deactivated := f.svc.RecordAttempt(context.Background(), ports.AttemptRecord{
		Kind:    domain.DestinationIntegration,
		ID:      uuid.New(),
		Event:   domain.EventSubmissionCreated,
		Success: true,
	})
	assert.False(t, deactivated)
}
