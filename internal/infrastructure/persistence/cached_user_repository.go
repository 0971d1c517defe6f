package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
)

const DefaultUserCacheSize = 1024

// CachedUserRepository кеширует пользователей по ID поверх другого репозитория.
// Записи через этот репозиторий обновляют кеш.
type CachedUserRepository struct {
	next  repository.UserRepository
	cache *lru.Cache[uuid.UUID, entity.User]
}

func NewCachedUserRepository(next repository.UserRepository, size int) (*CachedUserRepository, error) {
	if size <= 0 {
		size = DefaultUserCacheSize
	}
	cache, err := lru.New[uuid.UUID, entity.User](size)
	if err != nil {
		return nil, fmt.Errorf("user cache: %w", err)
	}
	return &CachedUserRepository{next: next, cache: cache}, nil
}

func (r *CachedUserRepository) Create(ctx context.Context, user *entity.User) error {
	if err := r.next.Create(ctx, user); err != nil {
		return err
	}
	r.cache.Add(user.ID, *user)
	return nil
}

// FindByID возвращает копию, чтобы вызывающий код не изменил закешированное значение.
func (r *CachedUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if cached, ok := r.cache.Get(id); ok {
		return &cached, nil
	}
	user, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, *user)
	return user, nil
}

func (r *CachedUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := r.next.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	r.cache.Add(user.ID, *user)
	return user, nil
}

func (r *CachedUserRepository) Update(ctx context.Context, user *entity.User) error {
	if err := r.next.Update(ctx, user); err != nil {
		r.cache.Remove(user.ID)
		return err
	}
	r.cache.Add(user.ID, *user)
	return nil
}

func (r *CachedUserRepository) Len() int {
	return r.cache.Len()
}
