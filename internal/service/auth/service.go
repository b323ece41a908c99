// Package auth implements account registration, login, token refresh,
// and push token registration.
package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callbridge-backend/internal/domain"
	apperrors "callbridge-backend/pkg/errors"
	"callbridge-backend/pkg/jwt"
	"callbridge-backend/pkg/logger"
	"callbridge-backend/pkg/password"
)

// UserRepository defines user storage operations used by the service
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// PushTokenStore stores device push tokens
type PushTokenStore interface {
	Upsert(ctx context.Context, userID uuid.UUID, token string) error
}

// Service handles authentication business logic
type Service struct {
	userRepo   UserRepository
	pushTokens PushTokenStore
	jwtManager *jwt.Manager
}

// NewService creates a new auth service
func NewService(userRepo UserRepository, pushTokens PushTokenStore, jwtManager *jwt.Manager) *Service {
	return &Service{
		userRepo:   userRepo,
		pushTokens: pushTokens,
		jwtManager: jwtManager,
	}
}

// RegisterInput contains user registration data
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// AuthOutput contains an authenticated user and their token pair
type AuthOutput struct {
	User         *domain.UserResponse
	AccessToken  string
	RefreshToken string
}

// Register creates a new user account. The username is stored with
// surrounding whitespace stripped.
func (s *Service) Register(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	emailTaken, err := s.userRepo.EmailExists(ctx, input.Email)
	if err != nil {
		return nil, apperrors.PersistenceError("Failed to check email", err)
	}
	if emailTaken {
		return nil, apperrors.EmailExistsError()
	}

	usernameTaken, err := s.userRepo.UsernameExists(ctx, input.Username)
	if err != nil {
		return nil, apperrors.PersistenceError("Failed to check username", err)
	}
	if usernameTaken {
		return nil, apperrors.UsernameExistsError()
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, apperrors.PersistenceError("Failed to hash password", err)
	}

	user := &domain.User{
		UserID:       uuid.New(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hash,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperrors.PersistenceError("Failed to create user", err)
	}

	logger.Info("User registered",
		zap.String("user_id", user.UserID.String()),
		zap.String("username", user.Username))

	return s.issueTokens(user)
}

// LoginInput contains login credentials
type LoginInput struct {
	Email    string
	Password string
}

// Login authenticates a user by email and password
func (s *Service) Login(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	if input.Email == "" || input.Password == "" {
		return nil, apperrors.InvalidCredentialsError()
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, apperrors.InvalidCredentialsError()
	}

	if !password.Verify(user.PasswordHash, input.Password) {
		return nil, apperrors.InvalidCredentialsError()
	}

	if user.Status != domain.UserStatusActive {
		return nil, apperrors.UnauthorizedError("Account is not active")
	}

	logger.Info("User logged in",
		zap.String("user_id", user.UserID.String()))

	return s.issueTokens(user)
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthOutput, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, apperrors.InvalidTokenError("Invalid refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.InvalidTokenError("Unknown user")
	}
	if user.Status != domain.UserStatusActive {
		return nil, apperrors.UnauthorizedError("Account is not active")
	}

	return s.issueTokens(user)
}

// GetUser returns a user's public profile
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.ToResponse(), nil
}

// SavePushToken registers the device push token of a user, replacing
// any previous one
func (s *Service) SavePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	if token == "" {
		return apperrors.MissingFieldError("token")
	}
	if err := s.pushTokens.Upsert(ctx, userID, token); err != nil {
		return apperrors.PersistenceError("Failed to save push token", err)
	}
	return nil
}

func (s *Service) issueTokens(user *domain.User) (*AuthOutput, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.UserID, user.Username)
	if err != nil {
		return nil, apperrors.InternalError("Failed to generate access token")
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.UserID)
	if err != nil {
		return nil, apperrors.InternalError("Failed to generate refresh token")
	}

	return &AuthOutput{
		User:         user.ToResponse(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func validateRegisterInput(input *RegisterInput) error {
	if input.Email == "" {
		return apperrors.MissingFieldError("email")
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return apperrors.ValidationError("Invalid email address")
	}
	if len(input.Username) < 3 || len(input.Username) > 30 {
		return apperrors.ValidationError("Username must be between 3 and 30 characters")
	}
	if err := password.Validate(input.Password); err != nil {
		return apperrors.ValidationError(err.Error())
	}
	return nil
}
