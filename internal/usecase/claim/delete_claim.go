package claim

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

type DeleteClaimUseCase struct {
	claims repository.ClaimRepository
	images *ImageProcessor
	log    logrus.FieldLogger
}

func NewDeleteClaimUseCase(claims repository.ClaimRepository, images *ImageProcessor, log logrus.FieldLogger) *DeleteClaimUseCase {
	return &DeleteClaimUseCase{claims: claims, images: images, log: log}
}

// Execute удаляет запись заявки, затем её изображения. Ошибка удаления
// отдельного изображения не прерывает операцию.
func (uc *DeleteClaimUseCase) Execute(ctx context.Context, claimID uuid.UUID) error {
	claim, err := uc.claims.FindByID(ctx, claimID)
	if err != nil {
		return err
	}

	if err := uc.claims.Delete(ctx, claimID); err != nil {
		if apperror.IsNotFound(err) {
			return err
		}
		return storageUnavailable(err)
	}

	deleted := uc.images.DeleteAll(context.WithoutCancel(ctx), claim.ID, claim.ImageRefs)
	uc.log.WithFields(logrus.Fields{
		"claim_id":       claim.ID,
		"images_total":   len(claim.ImageRefs),
		"images_deleted": deleted,
	}).Info("заявка удалена")
	return nil
}
