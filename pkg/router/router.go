package router

import (
	"autosms-dashboard/backend/internal/api"
	"autosms-dashboard/backend/pkg/config"
	"autosms-dashboard/backend/pkg/di"
	"autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/logger"
	"autosms-dashboard/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWTService, r.Logger)

	authHandler := api.NewAuthHandler(r.Container.UserService, r.Container.JWTService, r.Logger)
	accountController := api.NewAccountController(r.Container.DirectoryService, r.Logger)
	sessionController := api.NewSessionController(r.Container.Sessions, r.Logger)
	conversationController := api.NewConversationController(r.Container.InboxService, r.Logger)
	messageController := api.NewMessageController(r.Container.ChatService, r.Logger)

	v1 := r.Engine.Group("/api/v1")

	// Public routes (no auth required)
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/me", jwtAuth, authHandler.Me)
	}

	// Protected routes (require authentication)
	protected := v1.Group("/")
	protected.Use(jwtAuth)
	{
		accountRoutes := protected.Group("/accounts")
		{
			accountRoutes.GET("", accountController.List)
			accountRoutes.POST("/connect", accountController.Connect)
			accountRoutes.POST("/:id/select", accountController.Select)
			accountRoutes.PUT("/:id/bot-config", accountController.UpdateBotConfig)
		}

		sessionRoutes := protected.Group("/session")
		{
			sessionRoutes.GET("", sessionController.Get)
			sessionRoutes.DELETE("", sessionController.Clear)
		}

		conversationRoutes := protected.Group("/conversations")
		{
			conversationRoutes.GET("", conversationController.List)
			conversationRoutes.POST("/:id/select", conversationController.Select)
			conversationRoutes.PUT("/:id/bot", conversationController.ToggleBot)
		}

		messageRoutes := protected.Group("/messages")
		{
			messageRoutes.GET("", messageController.List)
			messageRoutes.POST("", messageController.Send)
			messageRoutes.GET("/draft", messageController.GetDraft)
			messageRoutes.PUT("/draft", messageController.SetDraft)
		}
	}

	r.setupHealthRoutes()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
