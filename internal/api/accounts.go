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

// AccountController exposes the account directory and responder settings
type AccountController struct {
	directory *service.DirectoryService
	logger    *logger.Logger
}

// NewAccountController creates a new AccountController
func NewAccountController(directory *service.DirectoryService, logger *logger.Logger) *AccountController {
	return &AccountController{directory: directory, logger: logger}
}

// List returns the profile's connected accounts, newest first
func (ac *AccountController) List(c *gin.Context) {
	profileID := middleware.ProfileID(c)

	accounts, err := ac.directory.ListAccounts(c.Request.Context(), profileID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// Select makes an account the active one for the session
func (ac *AccountController) Select(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	accountID := c.Param("id")

	account, err := ac.directory.SelectAccount(c.Request.Context(), profileID, accountID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// botConfigRequest is the responder settings payload
type botConfigRequest struct {
	Instruction string `json:"instruction" binding:"required"`
	Context     string `json:"context"`
	MaxTokens   int    `json:"max_tokens"`
}

// UpdateBotConfig saves the automated responder settings for an account
func (ac *AccountController) UpdateBotConfig(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	accountID := c.Param("id")

	var req botConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeValidation, "Invalid bot configuration"))
		return
	}

	account, err := ac.directory.SaveBotConfig(c.Request.Context(), profileID, accountID, models.BotConfig{
		Instruction: req.Instruction,
		Context:     req.Context,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// Connect returns the URL that starts the account connect flow
func (ac *AccountController) Connect(c *gin.Context) {
	profileID := middleware.ProfileID(c)

	authURL, err := ac.directory.ConnectURL(c.Request.Context(), profileID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authUrl": authURL})
}
