package claim

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

type ReanalyzeClaimUseCase struct {
	claims     repository.ClaimRepository
	images     *ImageProcessor
	aggregator *Aggregator
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewReanalyzeClaimUseCase(claims repository.ClaimRepository, images *ImageProcessor, aggregator *Aggregator, log logrus.FieldLogger) *ReanalyzeClaimUseCase {
	return &ReanalyzeClaimUseCase{claims: claims, images: images, aggregator: aggregator, log: log, now: time.Now}
}

// Execute повторно анализирует сохранённые изображения незавершённой заявки.
// Если анализ изображения снова не удался, прежний результат сохраняется.
func (uc *ReanalyzeClaimUseCase) Execute(ctx context.Context, claimID uuid.UUID) (*entity.Claim, error) {
	claim, err := uc.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "нельзя переоценить заявку в конечном статусе")
	}

	analyses := make([]entity.DamageAnalysis, len(claim.ImageRefs))
	for i := range analyses {
		if i < len(claim.DamageAnalyses) {
			analyses[i] = claim.DamageAnalyses[i]
		} else {
			analyses[i] = entity.FailedAnalysis(analysisFailureReason)
		}
	}

	var g errgroup.Group
	g.SetLimit(uc.images.workers)
	for i, ref := range claim.ImageRefs {
		i, ref := i, ref
		g.Go(func() error {
			analysis, err := uc.images.Analyze(ctx, ref)
			if err != nil {
				uc.log.WithFields(logrus.Fields{
					"claim_id":    claim.ID,
					"image_index": i,
					"reference":   ref,
				}).WithError(err).Warn("повторный анализ изображения не удался")
				return nil
			}
			analyses[i] = analysis
			return nil
		})
	}
	_ = g.Wait()

	severity, amount := uc.aggregator.Aggregate(analyses)
	claim.SetAssessment(claim.ImageRefs, analyses, severity, amount)
	claim.UpdatedAt = uc.now()

	if err := uc.claims.UpdateAssessment(ctx, claim); err != nil {
		if apperror.IsNotFound(err) || apperror.IsConflict(err) {
			return nil, err
		}
		return nil, storageUnavailable(err)
	}
	return claim, nil
}

type UpdateIncidentDetailsInput struct {
	ClaimID uuid.UUID
	Details entity.IncidentDetails
}

type UpdateIncidentDetailsUseCase struct {
	claims repository.ClaimRepository
	now    func() time.Time
}

func NewUpdateIncidentDetailsUseCase(claims repository.ClaimRepository) *UpdateIncidentDetailsUseCase {
	return &UpdateIncidentDetailsUseCase{claims: claims, now: time.Now}
}

func (uc *UpdateIncidentDetailsUseCase) Execute(ctx context.Context, input UpdateIncidentDetailsInput) (*entity.Claim, error) {
	claim, err := uc.claims.FindByID(ctx, input.ClaimID)
	if err != nil {
		return nil, err
	}
	if err := claim.UpdateDetails(input.Details, uc.now()); err != nil {
		return nil, err
	}
	if err := uc.claims.UpdateDetails(ctx, claim); err != nil {
		if apperror.IsNotFound(err) || apperror.IsConflict(err) {
			return nil, err
		}
		return nil, storageUnavailable(err)
	}
	return claim, nil
}
