package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewUser(email, displayName, role, passwordHash string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.Validation(map[string]string{"email": "email обязателен"})
	}
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, apperror.Validation(map[string]string{"role": "роль должна быть user или admin"})
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.Split(email, "@")[0]
	}

	now := time.Now()
	return &User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) Rename(displayName string) {
	u.DisplayName = strings.TrimSpace(displayName)
	u.UpdatedAt = time.Now()
}

// Deactivate отключает пользователя; записи пользователей не удаляются.
func (u *User) Deactivate() {
	u.IsActive = false
	u.UpdatedAt = time.Now()
}
