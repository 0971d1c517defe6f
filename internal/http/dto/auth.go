package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/service"
)

type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AuthResponse struct {
	User   UserResponse       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

func ToUserResponse(u *entity.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}

func ToAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{User: ToUserResponse(res.User), Tokens: res.TokenPair}
}
