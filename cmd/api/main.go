package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"formpulse-relay/config"
	httpHandler "formpulse-relay/internal/adapter/http/handler"
	"formpulse-relay/internal/adapter/provider"
	pgStorage "formpulse-relay/internal/adapter/storage/postgres"
	redisStorage "formpulse-relay/internal/adapter/storage/redis"
	"formpulse-relay/internal/core/ports"
	"formpulse-relay/internal/service"
	"formpulse-relay/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting FormPulse Relay")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	integrationRepo := pgStorage.NewIntegrationRepo(pool)
	webhookRepo := pgStorage.NewWebhookRepo(pool)
	hookRepo := pgStorage.NewHookSubscriptionRepo(pool)
	logRepo := pgStorage.NewDeliveryLogRepo(pool)
	apiKeyRepo := pgStorage.NewAPIKeyRepo(pool)

	// Initialize Redis stores
	schemaCache := redisStorage.NewSchemaCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	apiKeySvc := service.NewAPIKeyService(apiKeyRepo, hashSvc, log)

	// Provider adapters share one HTTP client; per-call deadlines come from
	// the dispatch config, so no client-level timeout here.
	providerClient := &http.Client{}
	registry := provider.NewRegistry(providerClient, schemaCache, cfg.Dispatch.SchemaCacheTTL)

	// Initialize engine services
	dispatcher := service.NewDeliveryService(
		logRepo,
		integrationRepo,
		webhookRepo,
		hookRepo,
		sigSvc,
		&http.Client{Timeout: cfg.Dispatch.WebhookTimeout},
		cfg.Dispatch,
		log,
	)
	subscriptionSvc := service.NewSubscriptionService(hookRepo, webhookRepo, integrationRepo, log)
	integrationSvc := service.NewIntegrationService(integrationRepo, encSvc, registry, cfg.Dispatch, log)
	dispatchSvc := service.NewDispatchService(
		integrationRepo,
		webhookRepo,
		hookRepo,
		encSvc,
		registry,
		dispatcher,
		cfg.Dispatch,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
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
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
