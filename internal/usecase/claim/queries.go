package claim

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
	"github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPage ограничивает номер страницы, чтобы (page-1)*limit не переполнялось.
	MaxPage = math.MaxInt / MaxPageLimit
)

// Viewer описывает пользователя, от имени которого читаются заявки.
type Viewer struct {
	ID      uuid.UUID
	IsAdmin bool
}

func (v Viewer) canSee(claim *entity.Claim) bool {
	return v.IsAdmin || claim.IsOwnedBy(v.ID)
}

type ClaimPage struct {
	Claims      []*entity.Claim
	Total       int
	TotalPages  int
	CurrentPage int
}

func newClaimPage(claims []*entity.Claim, total, page, limit int) *ClaimPage {
	if claims == nil {
		claims = []*entity.Claim{}
	}
	return &ClaimPage{
		Claims:      claims,
		Total:       total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	}
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// parseStatusFilter: пустая строка и "all" означают отсутствие фильтра.
func parseStatusFilter(raw string) (valueobject.ClaimStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "all" {
		return "", nil
	}
	status, err := valueobject.NewClaimStatus(raw)
	if err != nil {
		return "", apperror.Validation(map[string]string{"status": "некорректный статус заявки"})
	}
	return status, nil
}

type GetClaimUseCase struct {
	claims repository.ClaimRepository
}

func NewGetClaimUseCase(claims repository.ClaimRepository) *GetClaimUseCase {
	return &GetClaimUseCase{claims: claims}
}

func (uc *GetClaimUseCase) Execute(ctx context.Context, claimID uuid.UUID, viewer Viewer) (*entity.Claim, error) {
	claim, err := uc.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !viewer.canSee(claim) {
		// Чужая заявка неотличима от несуществующей.
		return nil, apperror.ErrClaimNotFound
	}
	return claim, nil
}

type GetClaimHistoryUseCase struct {
	claims repository.ClaimRepository
}

func NewGetClaimHistoryUseCase(claims repository.ClaimRepository) *GetClaimHistoryUseCase {
	return &GetClaimHistoryUseCase{claims: claims}
}

func (uc *GetClaimHistoryUseCase) Execute(ctx context.Context, claimID uuid.UUID, viewer Viewer) ([]entity.StatusChange, error) {
	claim, err := uc.claims.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !viewer.canSee(claim) {
		return nil, apperror.ErrClaimNotFound
	}
	history, err := uc.claims.History(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []entity.StatusChange{}
	}
	return history, nil
}

type ListUserClaimsInput struct {
	UserID uuid.UUID
	Viewer Viewer
	Page   int
	Limit  int
	Status string
}

type ListUserClaimsUseCase struct {
	claims repository.ClaimRepository
}

func NewListUserClaimsUseCase(claims repository.ClaimRepository) *ListUserClaimsUseCase {
	return &ListUserClaimsUseCase{claims: claims}
}

func (uc *ListUserClaimsUseCase) Execute(ctx context.Context, input ListUserClaimsInput) (*ClaimPage, error) {
	if !input.Viewer.IsAdmin && input.Viewer.ID != input.UserID {
		return nil, apperror.ErrForbidden
	}
	status, err := parseStatusFilter(input.Status)
	if err != nil {
		return nil, err
	}
	page, limit := normalizePage(input.Page, input.Limit)

	userID := input.UserID
	claims, total, err := uc.claims.List(ctx, repository.ClaimFilter{
		UserID:    &userID,
		Status:    status,
		SortBy:    "submitted_at",
		SortOrder: "desc",
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return newClaimPage(claims, total, page, limit), nil
}

type ListAllClaimsInput struct {
	Page      int
	Limit     int
	Status    string
	Severity  string
	Search    string
	SortBy    string
	SortOrder string
}

var claimSortColumns = map[string]string{
	"":                "submitted_at",
	"submittedAt":     "submitted_at",
	"updatedAt":       "updated_at",
	"estimatedAmount": "estimated_amount",
	"severity":        "severity",
	"status":          "status",
	"claimNumber":     "claim_number",
}

type ListAllClaimsUseCase struct {
	claims repository.ClaimRepository
}

func NewListAllClaimsUseCase(claims repository.ClaimRepository) *ListAllClaimsUseCase {
	return &ListAllClaimsUseCase{claims: claims}
}

func (uc *ListAllClaimsUseCase) Execute(ctx context.Context, input ListAllClaimsInput) (*ClaimPage, error) {
	status, err := parseStatusFilter(input.Status)
	if err != nil {
		return nil, err
	}

	var severity valueobject.Severity
	if s := strings.TrimSpace(input.Severity); s != "" && s != "all" {
		severity, err = valueobject.NewSeverity(s)
		if err != nil {
			return nil, apperror.Validation(map[string]string{"severity": "некорректный уровень повреждений"})
		}
	}

	sortBy, ok := claimSortColumns[input.SortBy]
	if !ok {
		return nil, apperror.Validation(map[string]string{"sortBy": "недопустимое поле сортировки"})
	}
	sortOrder := "desc"
	if strings.EqualFold(input.SortOrder, "asc") {
		sortOrder = "asc"
	}

	page, limit := normalizePage(input.Page, input.Limit)
	claims, total, err := uc.claims.List(ctx, repository.ClaimFilter{
		Status:    status,
		Severity:  severity,
		Search:    strings.TrimSpace(input.Search),
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	return newClaimPage(claims, total, page, limit), nil
}

type StatisticsUseCase struct {
	claims repository.ClaimRepository
}

func NewStatisticsUseCase(claims repository.ClaimRepository) *StatisticsUseCase {
	return &StatisticsUseCase{claims: claims}
}

// Execute возвращает статистику; отсутствующие статусы и уровни заполняются нулями.
func (uc *StatisticsUseCase) Execute(ctx context.Context) (*entity.ClaimStatistics, error) {
	stats, err := uc.claims.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	if stats.ByStatus == nil {
		stats.ByStatus = map[valueobject.ClaimStatus]entity.StatusBucket{}
	}
	for _, s := range []valueobject.ClaimStatus{
		valueobject.ClaimStatusPending,
		valueobject.ClaimStatusUnderReview,
		valueobject.ClaimStatusApproved,
		valueobject.ClaimStatusRejected,
	} {
		if _, ok := stats.ByStatus[s]; !ok {
			stats.ByStatus[s] = entity.StatusBucket{}
		}
	}
	if stats.BySeverity == nil {
		stats.BySeverity = map[valueobject.Severity]entity.SeverityBucket{}
	}
	for _, s := range []valueobject.Severity{valueobject.SeverityMinor, valueobject.SeverityModerate, valueobject.SeveritySevere} {
		if _, ok := stats.BySeverity[s]; !ok {
			stats.BySeverity[s] = entity.SeverityBucket{}
		}
	}
	if stats.Monthly == nil {
		stats.Monthly = []entity.MonthlyBucket{}
	}
	return stats, nil
}
