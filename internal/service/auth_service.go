package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/opencourse/lms-api/internal/dto"
	"github.com/opencourse/lms-api/internal/models"
	"github.com/opencourse/lms-api/internal/repository"
)

// Auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
)

// TokenConfig carries the secrets and lifetimes used to sign tokens.
type TokenConfig struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// AuthService handles registration, credential login and token refresh.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.TokenResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error)
	Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenResponse, error)
}

type authService struct {
	users     repository.UserRepository
	validator *validator.Validate
	tokens    TokenConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users repository.UserRepository, validate *validator.Validate, tokens TokenConfig, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		validator: validate,
		tokens:    tokens,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

// Register creates a STUDENT account. Other roles are created by admins
// through the user service.
func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.TokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenResponse{}, err
	}

	user := models.User{
		Name:  strings.TrimSpace(payload.Name),
		Email: strings.ToLower(strings.TrimSpace(payload.Email)),
		Role:  models.RoleStudent,
	}
	if err := user.SetPassword(payload.Password); err != nil {
		return dto.TokenResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.TokenResponse{}, ErrEmailTaken
		}
		return dto.TokenResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("student registered")

	return s.issueTokens(user)
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenResponse{}, ErrInvalidCredentials
		}
		return dto.TokenResponse{}, err
	}

	if err := user.CheckPassword(payload.Password); err != nil {
		return dto.TokenResponse{}, ErrInvalidCredentials
	}

	return s.issueTokens(user)
}

func (s *authService) Refresh(ctx context.Context, payload dto.RefreshRequest) (dto.TokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenResponse{}, err
	}

	token, err := jwt.Parse(payload.RefreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(s.tokens.RefreshSecret), nil
	})
	if err != nil || !token.Valid {
		return dto.TokenResponse{}, ErrInvalidRefresh
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return dto.TokenResponse{}, ErrInvalidRefresh
	}

	subject, err := claims.GetSubject()
	if err != nil {
		return dto.TokenResponse{}, ErrInvalidRefresh
	}
	userID, err := strconv.ParseUint(subject, 10, 64)
	if err != nil {
		return dto.TokenResponse{}, ErrInvalidRefresh
	}

	// Role comes from the database, not the old token, so role edits take
	// effect on the next refresh.
	user, err := s.users.GetByID(ctx, uint(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TokenResponse{}, ErrInvalidRefresh
		}
		return dto.TokenResponse{}, err
	}

	return s.issueTokens(user)
}

func (s *authService) issueTokens(user models.User) (dto.TokenResponse, error) {
	now := s.now()

	access, err := s.signToken(user, s.tokens.Secret, now, s.tokens.AccessTTL)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	refresh, err := s.signToken(user, s.tokens.RefreshSecret, now, s.tokens.RefreshTTL)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	return dto.NewTokenResponse(access, refresh, user), nil
}

func (s *authService) signToken(user models.User, secret string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(user.ID), 10),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
