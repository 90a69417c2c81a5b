package handler

import (
	"formpulse-relay/internal/adapter/http/middleware"
	redisStore "formpulse-relay/internal/adapter/storage/redis"
	"formpulse-relay/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SubscriptionSvc ports.SubscriptionService
	DispatchSvc     ports.DispatchService
	IntegrationSvc  ports.IntegrationService
	APIKeySvc       ports.APIKeyService
	TokenSvc        ports.TokenService
	WebhookRepo     ports.WebhookRepository
	DeliveryLogRepo ports.DeliveryLogRepository
	Dispatcher      ports.DeliveryDispatcher
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (verifies PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	api := r.Group("/api")

	// --- API-key-authenticated routes (automation platforms) ---
	apiKeyAuth := middleware.APIKeyAuth(deps.APIKeySvc, deps.Logger)
	hooksHandler := NewHooksHandler(deps.SubscriptionSvc)
	zapier := api.Group("/zapier", apiKeyAuth)
	{
		zapier.GET("/me", rl("hooks"), hooksHandler.Me)
		zapier.POST("/hooks/subscribe", rl("hooks"), hooksHandler.Subscribe)
		zapier.DELETE("/hooks/:id", rl("hooks"), hooksHandler.Unsubscribe)
		zapier.GET("/hooks", rl("hooks"), hooksHandler.List)
		zapier.GET("/samples/submission", rl("hooks"), hooksHandler.SampleSubmission)
		zapier.GET("/samples/form", rl("hooks"), hooksHandler.SampleForm)
	}

	// --- JWT-authenticated routes (configuration surface) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.WebhookRepo, deps.DeliveryLogRepo, deps.Dispatcher, deps.SubscriptionSvc)
	webhooks := api.Group("/webhooks", jwtAuth)
	{
		webhooks.POST("", rl("config"), webhookHandler.Create)
		webhooks.GET("", rl("config"), webhookHandler.List)
		webhooks.GET("/:id", rl("config"), webhookHandler.Get)
		webhooks.PUT("/:id", rl("config"), webhookHandler.Update)
		webhooks.DELETE("/:id", rl("config"), webhookHandler.Delete)
		webhooks.POST("/:id/test", rl("webhook_test"), webhookHandler.Test)
		webhooks.POST("/:id/rotate-secret", rl("config"), webhookHandler.RotateSecret)
		webhooks.POST("/:id/reactivate", rl("config"), webhookHandler.Reactivate)
		webhooks.GET("/:id/logs", rl("config"), webhookHandler.Logs)
	}

	integrationHandler := NewIntegrationHandler(deps.IntegrationSvc)
	integrations := api.Group("/integrations", jwtAuth)
	{
		integrations.POST("/test", rl("integration_test"), integrationHandler.TestCredentials)
		integrations.GET("/:id/lists", rl("config"), integrationHandler.Discover)
		integrations.GET("/:id/databases", rl("config"), integrationHandler.Discover)
		integrations.GET("/:id/bases", rl("config"), integrationHandler.Discover)
		integrations.GET("/:id/pipelines", rl("config"), integrationHandler.Discover)
	}

	// --- Internal triggers (submission pipeline) ---
	dispatchHandler := NewDispatchHandler(deps.DispatchSvc)
	internal := r.Group("/internal/dispatch")
	{
		internal.POST("/submission", dispatchHandler.DispatchSubmission)
		internal.POST("/form-event", dispatchHandler.TriggerFormEvent)
	}

	return r
}
