package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/http/dto"
	"github.com/ignatzorin/autoclaim-backend/internal/http/response"
	"github.com/ignatzorin/autoclaim-backend/internal/service"
)

type authService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error)
	Me(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, displayName string) (*entity.User, error)
	Deactivate(ctx context.Context, actorID, userID uuid.UUID) (*entity.User, error)
}

// AuthHandler предоставляет HTTP слой для регистрации и логина.
type AuthHandler struct {
	auth authService
}

func NewAuthHandler(auth authService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register обрабатывает POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email и пароль обязательны")
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ToAuthResponse(result))
}

// Login обрабатывает POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "email и пароль обязательны")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToAuthResponse(result))
}

// Refresh обрабатывает POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "refresh токен обязателен")
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, tokens)
}

// Me обрабатывает GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	user, err := h.auth.Me(c.Request.Context(), viewer.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToUserResponse(user))
}

// UpdateProfile обрабатывает PATCH /api/auth/me.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Validation(c, map[string]string{"displayName": "имя обязательно"})
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), viewer.ID, req.DisplayName)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToUserResponse(user))
}

// DeactivateUser обрабатывает POST /api/admin/users/:id/deactivate.
func (h *AuthHandler) DeactivateUser(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	user, err := h.auth.Deactivate(c.Request.Context(), viewer.ID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToUserResponse(user))
}
