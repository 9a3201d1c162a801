package di

import (
	"autosms-dashboard/backend/internal/bridge"
	"autosms-dashboard/backend/internal/repository"
	"autosms-dashboard/backend/internal/service"
	"autosms-dashboard/backend/internal/session"
	"autosms-dashboard/backend/pkg/cache"
	"autosms-dashboard/backend/pkg/config"
	"autosms-dashboard/backend/pkg/jwt"
	"autosms-dashboard/backend/pkg/logger"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB     *gorm.DB
	Config *config.Config
	Logger *logger.Logger

	JWTService *jwt.Service

	Accounts      repository.AccountRepository
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository

	SessionPersister *session.RedisPersister
	Sessions         *session.Manager

	Bridge *bridge.Client

	UserService      *service.UserService
	DirectoryService *service.DirectoryService
	InboxService     *service.InboxService
	ChatService      *service.ChatService
}

// New wires the application graph from a database handle and config
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) *Container {
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	accounts := repository.NewGormAccountRepository(db)
	conversations := repository.NewGormConversationRepository(db)
	messages := repository.NewGormMessageRepository(db)

	persister := session.NewRedisPersister(cfg)
	sessions := session.NewManager(persister, log)

	bridgeClient := bridge.NewClient(cfg, log)

	listCache := cache.NewCache()

	return &Container{
		DB:               db,
		Config:           cfg,
		Logger:           log,
		JWTService:       jwtService,
		Accounts:         accounts,
		Conversations:    conversations,
		Messages:         messages,
		SessionPersister: persister,
		Sessions:         sessions,
		Bridge:           bridgeClient,
		UserService:      service.NewUserService(db, jwtService),
		DirectoryService: service.NewDirectoryService(accounts, sessions, bridgeClient, listCache, log),
		InboxService:     service.NewInboxService(conversations, sessions, cfg.Inbox.RecentWindow, log),
		ChatService:      service.NewChatService(messages, conversations, bridgeClient, sessions, log),
	}
}
