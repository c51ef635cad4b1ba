package service

import (
	"gatekeeper/internal/auth"
	"gatekeeper/internal/models"
)

type RegisterInput struct {
	Name            string      `json:"name" validate:"required,min=2,max=100,personname"`
	Email           string      `json:"email" validate:"required,email,max=100"`
	Phone           *string     `json:"phone,omitempty" validate:"omitempty,phone"`
	Password        string      `json:"password" validate:"required,max=72"`
	ConfirmPassword string      `json:"confirmPassword" validate:"required,eqfield=Password"`
	Role            models.Role `json:"role,omitempty" validate:"omitempty,oneof=PLAYER OWNER EMPLOYEE ADMIN"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginResult struct {
	User       *models.PublicUser
	Tokens     *auth.TokenPair
	RedirectTo string
}

type RefreshResult struct {
	User   *models.PublicUser
	Tokens *auth.TokenPair
}

type LogoutInput struct {
	AccessToken  string
	RefreshToken string
}

type LogoutResult struct {
	UserID          string
	SessionsRevoked int64
}

type emailInput struct {
	Email string `json:"email" validate:"required,email,max=100"`
}

type ResetPasswordInput struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type UpdateProfileInput struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=2,max=100,personname"`
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,phone"`
}
