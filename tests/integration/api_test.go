package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"formpulse-relay/config"
	httpHandler "formpulse-relay/internal/adapter/http/handler"
	"formpulse-relay/internal/adapter/provider"
	redisStorage "formpulse-relay/internal/adapter/storage/redis"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/internal/service"
	"formpulse-relay/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack: real HTTP layer, middleware,
// services, provider registry, and Redis stores against miniredis, with
// in-memory postgres repos. Only the provider APIs themselves are absent.

type testApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis

	integrationRepo *inMemoryIntegrationRepo
	webhookRepo     *inMemoryWebhookRepo
	hookRepo        *inMemoryHookRepo
	logRepo         *inMemoryDeliveryLogRepo

	tokenSvc  ports.TokenService
	apiKeySvc ports.APIKeyService
	sigSvc    ports.SignatureService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	// Redis stores
	schemaCache := redisStorage.NewSchemaCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Core services with real implementations
	encSvc, err := service.NewAESEncryptionService("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")

	// In-memory repos
	integrationRepo := newInMemoryIntegrationRepo()
	webhookRepo := newInMemoryWebhookRepo()
	hookRepo := newInMemoryHookRepo()
	logRepo := newInMemoryDeliveryLogRepo()
	apiKeyRepo := newInMemoryAPIKeyRepo()

	log := logger.New("debug", false)
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, hashSvc, log)

	// A low failure threshold keeps deactivation tests short.
	dispatchCfg := config.DispatchConfig{
		FailureThreshold: 3,
		FailureWindow:    time.Hour,
		WebhookTimeout:   5 * time.Second,
		TestTimeout:      5 * time.Second,
		MaxConcurrency:   4,
		SchemaCacheTTL:   time.Minute,
	}

	registry := provider.NewRegistry(&http.Client{}, schemaCache, dispatchCfg.SchemaCacheTTL)

	dispatcher := service.NewDeliveryService(
		logRepo,
		integrationRepo,
		webhookRepo,
		hookRepo,
		sigSvc,
		&http.Client{Timeout: dispatchCfg.WebhookTimeout},
		dispatchCfg,
		log,
	)
	subscriptionSvc := service.NewSubscriptionService(hookRepo, webhookRepo, integrationRepo, log)
	integrationSvc := service.NewIntegrationService(integrationRepo, encSvc, registry, dispatchCfg, log)
	dispatchSvc := service.NewDispatchService(
		integrationRepo,
		webhookRepo,
		hookRepo,
		encSvc,
		registry,
		dispatcher,
		dispatchCfg,
		log,
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SubscriptionSvc: subscriptionSvc,
		DispatchSvc:     dispatchSvc,
		IntegrationSvc:  integrationSvc,
		APIKeySvc:       apiKeySvc,
		TokenSvc:        tokenSvc,
		WebhookRepo:     webhookRepo,
		DeliveryLogRepo: logRepo,
		Dispatcher:      dispatcher,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:          log,
	})

	server := httptest.NewServer(router)

	return &testApp{
		server:          server,
		redis:           mr,
		integrationRepo: integrationRepo,
		webhookRepo:     webhookRepo,
		hookRepo:        hookRepo,
		logRepo:         logRepo,
		tokenSvc:        tokenSvc,
		apiKeySvc:       apiKeySvc,
		sigSvc:          sigSvc,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

func (a *testApp) jwtFor(t *testing.T, accountID uuid.UUID) string {
	t.Helper()
	token, _, err := a.tokenSvc.Generate(accountID, "owner@example.com")
	require.NoError(t, err)
	return token
}

func (a *testApp) apiKeyFor(t *testing.T, accountID uuid.UUID) string {
	t.Helper()
	key, err := a.apiKeySvc.Generate(t.Context(), accountID, "zapier")
	require.NoError(t, err)
	return key
}

func (a *testApp) doJSON(t *testing.T, method, path string, headers map[string]string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_WebhookLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	auth := map[string]string{"Authorization": "Bearer " + app.jwtFor(t, accountID)}

	// Create
	resp, body := app.doJSON(t, http.MethodPost, "/api/webhooks", auth, map[string]interface{}{
		"name":   "CRM sync",
		"url":    "https://example.com/hooks/formpulse",
		"events": []string{"submission.created"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	webhookID := data["id"].(string)
	secret := data["secret"].(string)
	assert.Len(t, secret, 64)

	// List never exposes the secret
	resp, body = app.doJSON(t, http.MethodGet, "/api/webhooks", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["data"].([]interface{})
	require.Len(t, items, 1)
	_, hasSecret := items[0].(map[string]interface{})["secret"]
	assert.False(t, hasSecret)

	// Update
	resp, body = app.doJSON(t, http.MethodPut, "/api/webhooks/"+webhookID, auth, map[string]interface{}{
		"name": "CRM sync v2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CRM sync v2", body["data"].(map[string]interface{})["name"])

	// Rotate
	resp, body = app.doJSON(t, http.MethodPost, "/api/webhooks/"+webhookID+"/rotate-secret", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := body["data"].(map[string]interface{})["secret"].(string)
	assert.NotEqual(t, secret, rotated)

	// Another account cannot see it
	otherAuth := map[string]string{"Authorization": "Bearer " + app.jwtFor(t, uuid.New())}
	resp, _ = app.doJSON(t, http.MethodGet, "/api/webhooks/"+webhookID, otherAuth, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Delete
	resp, _ = app.doJSON(t, http.MethodDelete, "/api/webhooks/"+webhookID, auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = app.doJSON(t, http.MethodGet, "/api/webhooks/"+webhookID, auth, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_HookSubscribeFlow(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	accountID := uuid.New()
	auth := map[string]string{"X-API-Key": app.apiKeyFor(t, accountID)}

	// Auth test
	resp, body := app.doJSON(t, http.MethodGet, "/api/zapier/me", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, accountID.String(), body["data"].(map[string]interface{})["account_id"])
	assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))

	// Subscribe
	resp, body = app.doJSON(t, http.MethodPost, "/api/zapier/hooks/subscribe", auth, map[string]string{
		"event":   "submission.created",
		"hookUrl": "https://hooks.zapier.com/hooks/catch/123/abc",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	subID := body["data"].(map[string]interface{})["id"].(string)

	// List
	resp, body = app.doJSON(t, http.MethodGet, "/api/zapier/hooks", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["data"].([]interface{}), 1)

	// Unsubscribe
	resp, _ = app.doJSON(t, http.MethodDelete, "/api/zapier/hooks/"+subID, auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = app.doJSON(t, http.MethodGet, "/api/zapier/hooks", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["data"])
}

func TestIntegration_InvalidAPIKey(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, _ := app.doJSON(t, http.MethodGet, "/api/zapier/me", map[string]string{
		"X-API-Key": "fp_hook_0000000000000000000000000000000000000000000000",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = app.doJSON(t, http.MethodGet, "/api/zapier/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntegration_SamplePayloads(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	auth := map[string]string{"X-API-Key": app.apiKeyFor(t, uuid.New())}

	req, err := http.NewRequest(http.MethodGet, app.server.URL+"/api/zapier/samples/submission", nil)
	require.NoError(t, err)
	for k, v := range auth {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var samples []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&samples))
	require.Len(t, samples, 1)
	assert.Equal(t, "submission.created", samples[0]["event"])
	submission := samples[0]["submission"].(map[string]interface{})
	assert.NotEmpty(t, submission["data"])
	assert.NotEmpty(t, submission["answers"])
}

func TestIntegration_UnknownProviderType(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	auth := map[string]string{"Authorization": "Bearer " + app.jwtFor(t, uuid.New())}

	resp, _ := app.doJSON(t, http.MethodPost, "/api/integrations/test", auth, map[string]interface{}{
		"type":        "FAXMACHINE",
		"credentials": map[string]string{"apiKey": "k"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
