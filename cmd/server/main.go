package main

// @title           Marketplace Chat API
// @version         1.0
// @description     Buyer and seller messaging for the marketplace: conversations, messages, attachments and push reminders
// @host            localhost:8080
// @BasePath        /api/v1
// @schemes         http https

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/adapters/kafka"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/adapters/push"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/adapters/storage"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/api/handlers"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/api/routes"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/config"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/database"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/jobs"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/logger"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/repositories/postgres"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/websocket"
)

type eventStream interface {
	services.EventPublisher
	Close() error
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Setup(cfg)
	slog.Info("Starting chat server", "env", cfg.Env)

	// Initialize Redis connection
	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize SQL connection
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	blobs, err := storage.NewMinIOClient(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
		cfg.MinIO.Bucket, cfg.MinIO.UseSSL, cfg.MinIO.PublicURL)
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	var events eventStream = kafka.NoopEventPublisher{}
	if cfg.Kafka.Enabled() {
		producer, err := kafka.InitKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
		if err != nil {
			slog.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		events = kafka.NewEventProducer(producer, cfg.Kafka.Topic)
		slog.Info("Kafka event stream enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// Repositories
	conversationRepo := postgres.NewConversationRepository(db)
	messageRepo := postgres.NewMessageRepository(db)
	userRepo := postgres.NewUserRepository(db)
	deviceRepo := postgres.NewDeviceRepository(db)

	// Services
	runner := services.NewTaskRunner(cfg.Scheduler.Workers, cfg.Scheduler.QueueSize, 30*time.Second)

	redisService := services.NewRedisService(redisClient)
	presence := services.NewPresenceService(redisClient, cfg.Redis.PresenceTTL)
	gateway := push.NewExpoClient(cfg.Push.ExpoURL, cfg.Push.AccessToken, cfg.Push.Timeout)

	uploads := services.NewUploadService(blobs, cfg.Upload.MaxBytes)
	fanout := services.NewFanoutService(redisService)
	notifier := services.NewNotificationService(deviceRepo, userRepo, presence, gateway)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, userRepo, uploads, fanout, runner)
	messageService := services.NewMessageService(conversationRepo, messageRepo, uploads, fanout, notifier, events, runner)
	reminderService := services.NewReminderService(conversationRepo, notifier, cfg.Scheduler.ReminderBatch)

	// Initialize WebSocket hub
	hub := websocket.NewHub(redisService, presence, messageService)
	go hub.Run()

	var scheduler *jobs.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = jobs.NewScheduler(cfg.Scheduler, reminderService, messageService)
		if err != nil {
			slog.Error("Failed to create scheduler", "error", err)
			os.Exit(1)
		}
		scheduler.Start()
	}

	router := routes.NewRouter(cfg.Server, cfg.IsProduction(), routes.Services{
		Conversations: conversationService,
		Messages:      messageService,
		Devices:       services.NewDeviceService(deviceRepo),
		Reminders:     reminderService,
		Hub:           hub,
		RateLimiter:   redisService,
		HealthChecks: map[string]handlers.Pinger{
			"database": database.SQLPinger{DB: db},
			"redis":    redisClient,
		},
	})
	router.SetupRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			slog.Warn("Scheduler jobs still running at shutdown")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if err := runner.Stop(shutdownCtx); err != nil {
		slog.Warn("Background tasks abandoned", "error", err)
	}

	// Stop WebSocket hub
	hub.Stop()

	if err := events.Close(); err != nil {
		slog.Error("Failed to close event stream", "error", err)
	}

	slog.Info("Server stopped")
}
