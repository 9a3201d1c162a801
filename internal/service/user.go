package service

import (
	"errors"
	"time"

	"autosms-dashboard/backend/internal/models"
	"autosms-dashboard/backend/pkg/jwt"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// UserService handles profile sign-up and sign-in
type UserService struct {
	db  *gorm.DB
	jwt *jwt.Service
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, jwtService *jwt.Service) *UserService {
	return &UserService{db: db, jwt: jwtService}
}

// CreateUser registers a new profile and returns it with a signed token
func (s *UserService) CreateUser(req *models.CreateUserRequest) (*models.User, string, error) {
	var existing models.User
	result := s.db.Where("email = ?", req.Email).First(&existing)
	if result.RowsAffected > 0 {
		return nil, "", ErrUserAlreadyExists
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, "", err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}

	return &user, token, nil
}

// Login authenticates a profile and returns it with a signed token
func (s *UserService) Login(req *models.LoginRequest) (*models.User, string, error) {
	var user models.User
	result := s.db.Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", result.Error
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", err
	}

	s.db.Model(&user).Update("last_login", time.Now())

	return &user, token, nil
}

// GetUserByID retrieves a profile by ID
func (s *UserService) GetUserByID(id string) (*models.User, error) {
	var user models.User
	result := s.db.Where("id = ?", id).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}
