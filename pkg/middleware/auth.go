package middleware

import (
	"strings"

	"autosms-dashboard/backend/pkg/errors"
	"autosms-dashboard/backend/pkg/jwt"
	"autosms-dashboard/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware validates the bearer token and stores the signed-in
// profile in the request context. Unauthenticated requests get an
// AUTH_REQUIRED error carrying the originally requested path so the client
// can redirect back after sign-in.
func JWTAuthMiddleware(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Error(errors.NewAuthRequiredError(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			log.Warn("Rejected token",
				"path", c.Request.URL.Path,
				"error", err.Error(),
			)
			c.Error(errors.NewAuthRequiredError(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		c.Set("profileId", claims.ProfileID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// ProfileID returns the authenticated profile id from the gin context.
// Empty when JWTAuthMiddleware has not run.
func ProfileID(c *gin.Context) string {
	return c.GetString("profileId")
}
