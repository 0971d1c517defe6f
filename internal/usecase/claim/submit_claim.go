package claim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const maxClaimNumberAttempts = 3

type SubmitClaimInput struct {
	UserID  uuid.UUID
	Details entity.IncidentDetails
	Images  []ImageUpload
}

type SubmitClaimUseCase struct {
	claims        repository.ClaimRepository
	users         repository.UserRepository
	images        *ImageProcessor
	aggregator    *Aggregator
	notifications *ClaimNotifier
	limits        ImageLimits
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewSubmitClaimUseCase(
	claims repository.ClaimRepository,
	users repository.UserRepository,
	images *ImageProcessor,
	aggregator *Aggregator,
	notifications *ClaimNotifier,
	limits ImageLimits,
	log logrus.FieldLogger,
) *SubmitClaimUseCase {
	return &SubmitClaimUseCase{
		claims:        claims,
		users:         users,
		images:        images,
		aggregator:    aggregator,
		notifications: notifications,
		limits:        limits,
		log:           log,
		now:           time.Now,
	}
}

func (uc *SubmitClaimUseCase) Execute(ctx context.Context, input SubmitClaimInput) (*entity.Claim, error) {
	owner, err := findActiveUser(ctx, uc.users, input.UserID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	claim, err := entity.NewClaim(owner.ID, input.Details, now)
	if err != nil {
		return nil, err
	}
	if err := uc.limits.ValidateImages(input.Images); err != nil {
		return nil, err
	}

	refs, analyses := uc.images.Process(ctx, claim.ID, input.Images)
	severity, amount := uc.aggregator.Aggregate(analyses)
	claim.SetAssessment(refs, analyses, severity, amount)

	if err := uc.persist(ctx, claim, now); err != nil {
		// Загруженные изображения не откатываются.
		return nil, err
	}

	uc.log.WithFields(logrus.Fields{
		"claim_id":     claim.ID,
		"claim_number": claim.ClaimNumber,
		"images":       len(refs),
		"severity":     claim.Severity,
	}).Info("заявка создана")

	uc.notifications.ClaimSubmitted(ctx, claim, owner)
	return claim, nil
}

func (uc *SubmitClaimUseCase) persist(ctx context.Context, claim *entity.Claim, now time.Time) error {
	var err error
	for attempt := 0; attempt < maxClaimNumberAttempts; attempt++ {
		claim.ClaimNumber = entity.NewClaimNumber(now)
		err = uc.claims.Create(ctx, claim)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperror.ErrDuplicateClaimNumber) {
			return storageUnavailable(err)
		}
		uc.log.WithField("claim_number", claim.ClaimNumber).Warn("коллизия номера заявки, генерируем заново")
	}
	return storageUnavailable(err)
}

func findActiveUser(ctx context.Context, users repository.UserRepository, userID uuid.UUID) (*entity.User, error) {
	user, err := users.FindByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, storageUnavailable(err)
	}
	if !user.IsActive {
		return nil, apperror.ErrUserNotFound
	}
	return user, nil
}

func storageUnavailable(err error) error {
	return apperror.Wrap(err, apperror.ErrCodeStorageUnavailable, "хранилище заявок недоступно")
}
