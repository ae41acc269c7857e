package routes

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/api/handlers"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/api/middleware"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/config"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/websocket"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Devices       *services.DeviceService
	Reminders     *services.ReminderService
	Hub           *websocket.Hub
	RateLimiter   middleware.RateLimiter
	HealthChecks  map[string]handlers.Pinger
}

type Router struct {
	engine              *gin.Engine
	wsHandler           *handlers.WSHandler
	conversationHandler *handlers.ConversationHandler
	messageHandler      *handlers.MessageHandler
	notificationHandler *handlers.NotificationHandler
	healthHandler       *handlers.HealthHandler
	rateLimitMW         *middleware.RateLimitMiddleware
	rateLimit           int
	rateWindow          time.Duration
}

func NewRouter(cfg config.ServerConfig, production bool, svc Services) *Router {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handlers.RegisterValidators(); err != nil {
		slog.Error("Failed to register request validators", "error", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(cfg.AllowedOrigins))
	engine.Use(middleware.LogApi())

	r := &Router{
		engine:              engine,
		wsHandler:           handlers.NewWSHandler(svc.Hub, cfg.AllowedOrigins),
		conversationHandler: handlers.NewConversationHandler(svc.Conversations, svc.Messages),
		messageHandler:      handlers.NewMessageHandler(svc.Messages),
		notificationHandler: handlers.NewNotificationHandler(svc.Devices, svc.Reminders),
		healthHandler:       handlers.NewHealthHandler(svc.HealthChecks),
		rateLimit:           cfg.RateLimit,
		rateWindow:          cfg.RateWindow,
	}
	if svc.RateLimiter != nil && cfg.RateLimit > 0 {
		r.rateLimitMW = middleware.NewRateLimitMiddleware(svc.RateLimiter)
	}
	return r
}

func (r *Router) limited(group *gin.RouterGroup, requests int) {
	if r.rateLimitMW != nil {
		group.Use(r.rateLimitMW.RateLimitIP(requests, r.rateWindow))
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	api.GET("/ws", r.wsHandler.HandleWebSocket)

	conversations := api.Group("/conversations")
	r.limited(conversations, r.rateLimit)
	{
		conversations.POST("", r.conversationHandler.CreateConversation)
		conversations.GET("", r.conversationHandler.GetUserConversations)
		conversations.GET("/:id/messages", r.conversationHandler.GetConversationMessages)
		conversations.PUT("/:id/read", r.conversationHandler.MarkAsRead)
		conversations.DELETE("/:id", r.conversationHandler.DeleteConversation)
	}

	messages := api.Group("/messages")
	r.limited(messages, 2*r.rateLimit)
	{
		messages.POST("/text", r.messageHandler.SendText)
		messages.POST("/placeholder", r.messageHandler.CreatePlaceholder)
		messages.POST("/:id/upload", r.messageHandler.UploadContent)
		messages.PUT("/:id/delivered", r.messageHandler.MarkDelivered)
		messages.DELETE("/:id", r.messageHandler.DeleteMessage)
	}

	devices := api.Group("/devices")
	r.limited(devices, r.rateLimit)
	{
		devices.POST("", r.notificationHandler.RegisterDevice)
	}

	notifications := api.Group("/notifications")
	{
		notifications.POST("/check-unresolved", r.notificationHandler.CheckUnresolved)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
