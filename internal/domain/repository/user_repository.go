package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
)

type UserRepository interface {
	// Create возвращает apperror.ErrEmailTaken, если email уже занят.
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
}
