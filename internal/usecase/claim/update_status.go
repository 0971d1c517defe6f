package claim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const maxStatusUpdateAttempts = 5

type UpdateStatusInput struct {
	ClaimID     uuid.UUID
	ActorID     uuid.UUID
	Status      string
	ReviewNotes *string
	FinalAmount *float64
}

type UpdateStatusUseCase struct {
	claims        repository.ClaimRepository
	notifications *ClaimNotifier
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewUpdateStatusUseCase(claims repository.ClaimRepository, notifications *ClaimNotifier, log logrus.FieldLogger) *UpdateStatusUseCase {
	return &UpdateStatusUseCase{claims: claims, notifications: notifications, log: log, now: time.Now}
}

// Execute применяет переход статуса. Если статус в хранилище изменился между
// чтением и записью, заявка перечитывается и переход проверяется заново.
func (uc *UpdateStatusUseCase) Execute(ctx context.Context, input UpdateStatusInput) (*entity.Claim, error) {
	target, err := valueobject.NewClaimStatus(input.Status)
	if err != nil {
		return nil, apperror.Validation(map[string]string{"status": "некорректный статус заявки"})
	}

	for attempt := 0; attempt < maxStatusUpdateAttempts; attempt++ {
		claim, err := uc.claims.FindByID(ctx, input.ClaimID)
		if err != nil {
			return nil, err
		}

		expected := claim.Status
		change, err := claim.ApplyTransition(target, input.ActorID, input.ReviewNotes, input.FinalAmount, uc.now())
		if err != nil {
			return nil, err
		}

		err = uc.claims.UpdateStatus(ctx, claim, expected, change)
		if errors.Is(err, apperror.ErrStatusConflict) {
			uc.log.WithFields(logrus.Fields{"claim_id": claim.ID, "attempt": attempt + 1}).
				Debug("статус заявки изменился параллельно, повторяем")
			continue
		}
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil, err
			}
			return nil, storageUnavailable(err)
		}

		uc.log.WithFields(logrus.Fields{
			"claim_id": claim.ID,
			"from":     change.FromStatus,
			"to":       change.ToStatus,
			"actor_id": change.ActorID,
		}).Info("статус заявки изменён")

		uc.notifications.StatusChanged(ctx, claim)
		return claim, nil
	}

	return nil, apperror.ErrStatusConflict
}
