package api

import (
	"net/http"

	"autosms-dashboard/backend/internal/session"
	"autosms-dashboard/backend/pkg/logger"
	"autosms-dashboard/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// SessionController exposes the persisted selection snapshot
type SessionController struct {
	sessions *session.Manager
	logger   *logger.Logger
}

// NewSessionController creates a new SessionController
func NewSessionController(sessions *session.Manager, logger *logger.Logger) *SessionController {
	return &SessionController{sessions: sessions, logger: logger}
}

// Get returns the profile's current selection. Account ids come back in their
// stored wrapped form; clients treat them as opaque.
func (sc *SessionController) Get(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	store := sc.sessions.ForProfile(c.Request.Context(), profileID)

	c.JSON(http.StatusOK, gin.H{
		"selected_account": store.ActiveAccount(),
		"selected_chat":    store.ActiveConversation(),
	})
}

// Clear drops the profile's selection, in memory and in the persistence slot
func (sc *SessionController) Clear(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	sc.sessions.Drop(c.Request.Context(), profileID)

	c.Status(http.StatusNoContent)
}
