package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"waos/docs/swagger"
	"waos/internal/api"
	"waos/internal/config"
	"waos/internal/db"
	"waos/internal/events"
	"waos/internal/models"
	"waos/internal/services"
	"waos/internal/tasks"
	"waos/internal/tasks/rate"
	"waos/internal/utils"
	"waos/internal/utils/crypto"
	"waos/internal/utils/logger"
)

// 🚀 Main function
// @title waos API
// @version 1.0
// @description API documentation for the waos service
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	appLog := logger.New("waos")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		appLog.Info("No .env file found, skipping environment variable loading")
	} else {
		appLog.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)

	privateKey, err := crypto.LoadPrivateKey(cfg.Crypto.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to initialize keys: %v", err)
	}

	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			_ = appLog.Error("Failed to close database connection", err)
		}
	}()
	conn := db.GetDB()

	ctx := context.Background()

	// Storage
	storage, err := services.NewStorage(ctx, cfg.Storage, cfg.Server.PublicURL)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	models.RegisterFileURLGenerator(storage)
	avatars := services.NewAvatarService(services.NewImageService(cfg.Uploads), storage)

	// Background jobs
	taskClient := tasks.NewTaskClient(cfg.Redis)
	defer taskClient.Close()
	taskClient.Subscribe(events.Default())

	// Subscribers are in place, so the bootstrap admin triggers its welcome mail.
	if err := models.CreateAdminFromEnv(conn); err != nil {
		appLog.Warn("Failed to create admin: %v", err)
	}

	resetLimiter := rate.NewQueueRateLimiter(taskClient.Redis(), rate.QueueConfig{
		Name: "password_reset",
		RateLimit: rate.RateLimit{
			Window:  cfg.Security.ResetWindow,
			MaxJobs: cfg.Security.ResetMaxPerEmail,
		},
	})

	taskServer := tasks.NewServer(cfg.Redis, tasks.NewTaskHandler(conn, tasks.NewMailer(cfg.Mail), cfg.App.Name), appLog)
	if err := taskServer.Start(); err != nil {
		_ = appLog.Error("Task server error", err)
	}

	taskScheduler := tasks.NewScheduler(cfg.Redis, appLog)
	go func() {
		if err := taskScheduler.Start(); err != nil {
			_ = appLog.Error("Task scheduler error", err)
		}
	}()

	// Swagger documentation
	swagger.SwaggerInfo.Title = cfg.App.Name + " API Documentation"
	swagger.SwaggerInfo.Description = "API documentation for the " + cfg.App.Name + " service"
	swagger.SwaggerInfo.Version = "1.0"

	apiServer, err := api.NewServer(cfg, conn, api.Deps{
		Tokens:     utils.NewTokenManager(cfg.JWT, privateKey),
		Storage:    storage,
		Avatars:    avatars,
		Limiter:    resetLimiter,
		Google:     utils.NewGoogleClient(cfg.OAuth.GoogleUserInfoURL),
		Downloader: utils.NewStorageHandler(cfg.Uploads.MaxAvatarBytes),
	})
	if err != nil {
		log.Fatalf("Failed to build API server: %v", err)
	}

	go func() {
		if err := apiServer.Start(); err != nil {
			_ = appLog.Error("API server stopped", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		_ = appLog.Error("Failed to shutdown API server", err)
	}

	// Let in-flight event handlers finish enqueueing before the client closes.
	events.Wait()

	taskScheduler.Stop()
	taskServer.Shutdown()

	appLog.Info("Servers shutdown gracefully")
}
