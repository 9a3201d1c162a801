package api

import (
	"net/http"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/service"
	"autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/logger"
	"autosms-dashboard/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// ConversationController exposes the conversation list for the active account
type ConversationController struct {
	inbox  *service.InboxService
	logger *logger.Logger
}

// NewConversationController creates a new ConversationController
func NewConversationController(inbox *service.InboxService, logger *logger.Logger) *ConversationController {
	return &ConversationController{inbox: inbox, logger: logger}
}

// List fetches the active account's conversations and applies the optional
// search and category query parameters to the result
func (cc *ConversationController) List(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	ctx := c.Request.Context()

	if _, err := cc.inbox.Load(ctx, profileID); err != nil {
		c.Error(err)
		return
	}

	query := c.Query("search")
	category := service.ParseFilterCategory(c.Query("category"))

	conversations := cc.inbox.Filter(ctx, profileID, query, category)
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
		"category":      category,
	})
}

// Select makes a conversation the active one for the session
func (cc *ConversationController) Select(c *gin.Context) {
	profileID := middleware.ProfileID(c)

	conversation, err := cc.inbox.SelectConversation(c.Request.Context(), profileID, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

// toggleRequest carries the desired responder state
type toggleRequest struct {
	BotActive *bool `json:"bot_active" binding:"required"`
}

// ToggleBot flips the automated responder for one conversation
func (cc *ConversationController) ToggleBot(c *gin.Context) {
	profileID := middleware.ProfileID(c)

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BotActive == nil {
		c.Error(errors.NewBadRequestError(errors.CodeValidation, "bot_active is required"))
		return
	}

	conversation, err := cc.inbox.ToggleAutomation(c.Request.Context(), profileID, c.Param("id"), *req.BotActive)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}
