package api

import (
	"net/http"

	"autosms-dashboard/backend/internal/service"
	"autosms-dashboard/backend/pkg/logger"
	"autosms-dashboard/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// MessageController exposes the active conversation's message thread and the
// composer
type MessageController struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewMessageController creates a new MessageController
func NewMessageController(chat *service.ChatService, logger *logger.Logger) *MessageController {
	return &MessageController{chat: chat, logger: logger}
}

// List fetches the active conversation's messages. ?refresh=true keeps the
// current list visible while the new one loads.
func (mc *MessageController) List(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	refresh := c.Query("refresh") == "true"

	list, err := mc.chat.Load(c.Request.Context(), profileID, refresh)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// draftRequest carries the composer text
type draftRequest struct {
	Text string `json:"text"`
}

// SetDraft stores the composer text for the profile
func (mc *MessageController) SetDraft(c *gin.Context) {
	profileID := middleware.ProfileID(c)

	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	mc.chat.SetDraft(profileID, req.Text)
	c.JSON(http.StatusOK, gin.H{"draft": req.Text})
}

// GetDraft returns the stored composer text
func (mc *MessageController) GetDraft(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	c.JSON(http.StatusOK, gin.H{"draft": mc.chat.Draft(profileID)})
}

// Send delivers the stored draft to the active conversation's participant. A
// whitespace-only draft returns 204 without touching anything.
func (mc *MessageController) Send(c *gin.Context) {
	profileID := middleware.ProfileID(c)

	msg, err := mc.chat.Send(c.Request.Context(), profileID)
	if err != nil {
		c.Error(err)
		return
	}
	if msg == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": msg})
}
