package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/pkg/config"
	"autosms-dashboard/backend/pkg/di"
	"autosms-dashboard/backend/pkg/logger"
	"autosms-dashboard/backend/pkg/router"
	"autosms-dashboard/backend/pkg/secrets"
	"autosms-dashboard/backend/shared/observability"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found")
	}

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logConfig.Level = level
	}
	logConfig.JSON = os.Getenv("LOG_FORMAT") != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"))

	cfg := config.Get()

	// Tracing and metrics
	shutdownTracing := observability.SetupTracing("autosms-dashboard")
	defer shutdownTracing()
	observability.SetupPrometheusMetrics()

	// Secrets backend for the bridge API key
	if err := secrets.Init(log); err != nil {
		log.Warn("Secrets manager unavailable, falling back to environment", "error", err)
	}

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.User{}, &models.Account{}, &models.Conversation{}, &models.Message{}); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Indexes backing the hot list queries
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_chats_account_interaction ON instagram_chats(instagram_account_id, last_interaction DESC)").Error; err != nil {
		log.LogError(err, "Failed to create chat index", "index", "idx_chats_account_interaction")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_chat_timestamp ON instagram_messages(chat_id, message_timestamp)").Error; err != nil {
		log.LogError(err, "Failed to create message index", "index", "idx_messages_chat_timestamp")
	}

	// Wire the application graph
	container := di.New(db, cfg, log)

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	// Add OpenAPI validation if schema file is available
	schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH")
	if schemaPath != "" {
		r.AddOpenAPIValidation(schemaPath)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r.Engine,
	}

	go func() {
		log.Info("Server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	log.Info("Server exited gracefully")
}
