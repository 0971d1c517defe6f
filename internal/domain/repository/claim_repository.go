package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
)

type ClaimRepository interface {
	// Create возвращает apperror.ErrDuplicateClaimNumber при коллизии номера.
	Create(ctx context.Context, claim *entity.Claim) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Claim, error)
	List(ctx context.Context, filter ClaimFilter) ([]*entity.Claim, int, error)
	// UpdateStatus записывает новый статус, только если в хранилище всё ещё
	// expected, и в той же транзакции добавляет запись аудита. Иначе
	// возвращает apperror.ErrStatusConflict.
	UpdateStatus(ctx context.Context, claim *entity.Claim, expected valueobject.ClaimStatus, change entity.StatusChange) error
	// UpdateDetails сохраняет только описательные поля незавершённой заявки.
	UpdateDetails(ctx context.Context, claim *entity.Claim) error
	// UpdateAssessment сохраняет только ссылки на изображения, анализы,
	// severity и estimatedAmount незавершённой заявки.
	UpdateAssessment(ctx context.Context, claim *entity.Claim) error
	Delete(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, claimID uuid.UUID) ([]entity.StatusChange, error)
	Statistics(ctx context.Context) (*entity.ClaimStatistics, error)
}

type ClaimFilter struct {
	UserID    *uuid.UUID
	Status    valueobject.ClaimStatus
	Severity  valueobject.Severity
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}
