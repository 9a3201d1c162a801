package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Key types for context values
type contextKey string

const (
	// RequestIDKey is the key for request ID values in contexts
	RequestIDKey contextKey = "requestID"
	// ProfileIDKey is the key for signed-in profile ID values in contexts
	ProfileIDKey contextKey = "profileID"
)

// RequestIDMiddleware adds a unique request ID to each request
// and sets it in both the context and response headers
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check if request already has an ID from upstream service
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Set the request ID in the context
		ctx := context.WithValue(c.Request.Context(), RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		// Set the request ID in the response headers
		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		c.Next()
	}
}

// WithRequestContext adds standard context values to a context for downstream operations
func WithRequestContext(parent context.Context, c *gin.Context) context.Context {
	ctx := parent

	if requestID, exists := c.Get("requestID"); exists {
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
	}

	if profileID, exists := c.Get("profileId"); exists {
		ctx = context.WithValue(ctx, ProfileIDKey, profileID)
	}

	return ctx
}

// GetRequestID extracts the request ID from a context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}

	return ""
}

// GetProfileID extracts the signed-in profile ID from a context
func GetProfileID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	if profileID, ok := ctx.Value(ProfileIDKey).(string); ok {
		return profileID
	}

	return ""
}
