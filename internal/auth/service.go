package auth

import (
	"context"
	"errors"
	"fmt"

	"ai-trading-assistant-go/internal/models"
	"ai-trading-assistant-go/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("Invalid username or password")
)

// ProfileUpdate lists the editable profile fields. Empty fields are left unchanged.
type ProfileUpdate struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Service registers and authenticates users.
type Service struct {
	db             *gorm.DB
	tokens         *TokenManager
	initialBalance float64
	logger         *zap.Logger
}

// NewService creates a new auth Service.
func NewService(db *gorm.DB, tokens *TokenManager, initialBalance float64, logger *zap.Logger) *Service {
	return &Service{
		db:             db,
		tokens:         tokens,
		initialBalance: initialBalance,
		logger:         logger.Named("auth"),
	}
}

// Tokens exposes the token manager used by the service.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register creates a user with the starting paper balance.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username, err := validation.Username(username)
	if err != nil {
		return nil, err
	}
	email, err = validation.Email(email)
	if err != nil {
		return nil, err
	}
	if err := validation.Password(password); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if n > 0 {
		return nil, validation.Errorf("Username already exists")
	}
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if n > 0 {
		return nil, validation.Errorf("Email already registered")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Balance:      s.initialBalance,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user, nil
}

// Login checks credentials by username or email and issues a session token.
func (s *Service) Login(ctx context.Context, identifier, password string) (*models.User, string, error) {
	identifier = validation.Sanitize(identifier, 100)
	if identifier == "" || password == "" {
		return nil, "", validation.Errorf("Username and password are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, identifier).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load user: %w", err)
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("Failed login attempt", zap.String("identifier", identifier))
		return nil, "", ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// UpdateProfile changes the email and/or password. A password change needs the current password.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}

	if upd.Email != "" && upd.Email != user.Email {
		email, err := validation.Email(upd.Email)
		if err != nil {
			return nil, err
		}
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("email = ? AND id <> ?", email, userID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if n > 0 {
			return nil, validation.Errorf("Email already registered")
		}
		changes["email"] = email
	}

	if upd.NewPassword != "" {
		if upd.CurrentPassword == "" {
			return nil, validation.Errorf("Current password is required to set a new password")
		}
		if err := CheckPassword(user.PasswordHash, upd.CurrentPassword); err != nil {
			return nil, validation.Errorf("Current password is incorrect")
		}
		if err := validation.Password(upd.NewPassword); err != nil {
			return nil, err
		}
		hash, err := HashPassword(upd.NewPassword)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hash
	}

	if len(changes) == 0 {
		return nil, validation.Errorf("No changes provided")
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.logger.Info("Profile updated", zap.Uint("user_id", userID), zap.Int("fields", len(changes)))
	return s.GetUser(ctx, userID)
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword compares a bcrypt hash with a candidate password.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
