package dto

import "github.com/opencourse/lms-api/internal/models"

// RegisterRequest is the payload for student self-registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest carries credentials for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse returns a signed token pair plus the authenticated profile.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// NewTokenResponse assembles a token response for the given user.
func NewTokenResponse(access, refresh string, user models.User) TokenResponse {
	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         NewUserResponse(user),
	}
}
