package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/clients/platform"
	"catalog-sync-service/internal/config"
	"catalog-sync-service/internal/database"
	"catalog-sync-service/internal/handlers"
	"catalog-sync-service/internal/middleware"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/secrets"
	"catalog-sync-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate models
	if err := database.Migrate(db); err != nil {
		log.Printf("Warning: Auto-migration failed: %v", err)
	}
	log.Println("Database models migrated")

	// Initialize GCP Secret Manager
	var secretManager *secrets.GCPSecretManager
	if cfg.GCPProjectID != "" {
		ctx := context.Background()
		secretManager, err = secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Printf("Warning: Failed to initialize GCP Secret Manager: %v", err)
		} else {
			log.Println("GCP Secret Manager initialized")
		}
	}

	// Initialize repository and services
	store := repository.NewStageRepository(db)
	clientFactory := newClientFactory(cfg, secretManager)
	batchService := services.NewBatchService(store, clientFactory, cfg, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	batchHandler := handlers.NewBatchHandler(batchService)
	credentialsHandler := handlers.NewCredentialsHandler(secretManager, clientFactory)

	// Setup router
	router := setupRouter(cfg, logger, healthHandler, batchHandler, credentialsHandler)

	// Start server
	log.Printf("Catalog Sync Service starting on port %s (env: %s)", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newClientFactory returns a factory that resolves the supplier credentials
// from the secret store and hands back an initialized platform client
func newClientFactory(cfg *config.Config, secretManager *secrets.GCPSecretManager) services.ClientFactory {
	return func(ctx context.Context) (clients.RemoteCatalogClient, error) {
		if secretManager == nil {
			return nil, fmt.Errorf("secret manager is not configured")
		}

		secretName := secretManager.BuildSecretName(cfg.PlatformSupplier)
		secret, err := secretManager.GetSecret(ctx, secretName)
		if err != nil {
			return nil, fmt.Errorf("failed to load platform credentials: %w", err)
		}
		creds, err := secretManager.GetPlatformCredentials(secret)
		if err != nil {
			return nil, err
		}

		client := platform.NewPlatformClient(cfg.PlatformBaseURL)
		client.SetRateLimit(cfg.DefaultRateLimit)
		scan := clients.DefaultScanConfig()
		scan.MaxPages = cfg.FindScanPages
		scan.PageSize = cfg.FindScanPageSize
		client.SetScanConfig(scan)
		if err := client.Initialize(ctx, map[string]interface{}{
			"api_key":     creds.APIKey,
			"supplier_id": creds.SupplierID,
		}); err != nil {
			return nil, err
		}
		return client, nil
	}
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	healthHandler *handlers.HealthHandler,
	batchHandler *handlers.BatchHandler,
	credentialsHandler *handlers.CredentialsHandler,
) *gin.Engine {
	router := gin.Default()

	// Security headers middleware
	router.Use(middleware.SecurityHeaders())

	// CORS middleware
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}
	router.Use(middleware.CORS(origins))
	router.Use(middleware.RequestLogger(logger))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		// Import Batches
		batches := v1.Group("/batches")
		{
			batches.GET("", batchHandler.ListBatches)
			batches.POST("", batchHandler.CommitBatch)
			batches.GET("/:id", batchHandler.GetBatch)
			batches.GET("/:id/products", batchHandler.ListProducts)
			batches.POST("/:id/reconcile", batchHandler.ReconcileBatch)
			batches.GET("/:id/failures", batchHandler.FailureReport)
			batches.GET("/:id/logs", batchHandler.GetLogs)
		}

		// Staged Products
		products := v1.Group("/products")
		{
			products.PATCH("/:id", batchHandler.UpdateProduct)
			products.POST("/:id/reconcile", batchHandler.ReconcileProduct)
		}

		// Platform Credentials
		platformGroup := v1.Group("/platform")
		{
			platformGroup.PUT("/credentials", credentialsHandler.UpdateCredentials)
			platformGroup.POST("/test", credentialsHandler.TestConnection)
		}
	}

	return router
}
