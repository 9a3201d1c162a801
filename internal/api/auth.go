package api

import (
	"net/http"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/internal/service"
	"autosms-dashboard/backend/pkg/jwt"
	"autosms-dashboard/backend/pkg/logger"
	"autosms-dashboard/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	service    *service.UserService
	jwtService *jwt.Service
	logger     *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.UserService, jwtService *jwt.Service, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service:    service,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Signup handles profile registration
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for signup", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, token, err := h.service.CreateUser(&req)
	if err != nil {
		switch err {
		case service.ErrUserAlreadyExists:
			c.JSON(http.StatusConflict, gin.H{"error": "A user with this email already exists"})
		default:
			h.logger.Error("Error creating user", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Login handles profile authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Error binding JSON for login", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, token, err := h.service.Login(&req)
	if err != nil {
		switch err {
		case service.ErrInvalidCredentials:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		default:
			h.logger.Error("Error during login", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred during login"})
		}
		return
	}

	h.logger.Info("Profile logged in",
		"profileId", user.ID,
		"email", user.Email,
	)

	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToResponse(),
		"token": token,
	})
}

// Me returns the current authenticated profile
func (h *AuthHandler) Me(c *gin.Context) {
	profileID := middleware.ProfileID(c)
	if profileID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.service.GetUserByID(profileID)
	if err != nil {
		switch err {
		case service.ErrUserNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		default:
			h.logger.Error("Error getting profile", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve profile"})
		}
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}
