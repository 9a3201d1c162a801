package jwt

import (
	"time"
)

// Service is a wrapper for JWT operations
type Service struct {
	secretKey string
	expiry    time.Duration
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if secretKey == "" {
		secretKey = getSecretKey()
	}

	if expiry == 0 {
		expiry = 24 * time.Hour // Default to 24 hours
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

// GenerateToken generates a JWT token for a profile
func (s *Service) GenerateToken(profileID, email string) (string, error) {
	return GenerateToken(profileID, email, s.expiry)
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(tokenString)
}
