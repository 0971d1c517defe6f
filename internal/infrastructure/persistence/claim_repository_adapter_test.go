package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
)

func TestBuildClaimWhere(t *testing.T) {
	userID := uuid.New()

	where, args := buildClaimWhere(repository.ClaimFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildClaimWhere(repository.ClaimFilter{
		UserID:   &userID,
		Status:   valueobject.ClaimStatusPending,
		Severity: valueobject.SeveritySevere,
		Search:   "civic",
	})
	assert.Equal(t,
		" WHERE user_id = $1 AND status = $2 AND severity = $3 AND (claim_number ILIKE $4 OR incident_description ILIKE $4 OR vehicle_info->>'make' ILIKE $4 OR vehicle_info->>'model' ILIKE $4)",
		where)
	assert.Equal(t, []any{userID, "pending", "severe", "%civic%"}, args)
}

func TestClaimOrderBy(t *testing.T) {
	assert.Equal(t, "submitted_at DESC, id DESC", claimOrderBy(repository.ClaimFilter{}))
	assert.Equal(t, "submitted_at DESC, id DESC", claimOrderBy(repository.ClaimFilter{SortBy: "1; DROP TABLE claims"}))
	assert.Equal(t, "estimated_amount ASC, id ASC", claimOrderBy(repository.ClaimFilter{SortBy: "estimated_amount", SortOrder: "asc"}))
	assert.Contains(t, claimOrderBy(repository.ClaimFilter{SortBy: "severity"}), "CASE severity")
}

func TestFillMonths(t *testing.T) {
	now := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	months := fillMonths(now, 12, []monthlyRow{
		{Month: "2025-03", Count: 2, Amount: 3500},
		{Month: "2026-02", Count: 1, Amount: 1000},
	})

	require.Len(t, months, 12)
	assert.Equal(t, "2025-03", months[0].Month)
	assert.Equal(t, 2, months[0].Count)
	assert.Equal(t, "2025-04", months[1].Month)
	assert.Equal(t, 0, months[1].Count)
	assert.Equal(t, "2026-02", months[11].Month)
	assert.Equal(t, 1000.0, months[11].TotalAmount)
}

func TestClaimRow_RoundTrip(t *testing.T) {
	reviewer := uuid.New()
	reviewedAt := time.Now().UTC().Truncate(time.Second)
	notes := "ok"
	amount := 1500.0

	c := &entity.Claim{
		ID:                  uuid.New(),
		ClaimNumber:         "CLM-1-ABCDEFGH",
		UserID:              uuid.New(),
		VehicleInfo:         entity.VehicleInfo{Make: "Ford", Model: "Focus", Year: 2015, VIN: "1FA"},
		IncidentDescription: "Hail",
		IncidentDate:        reviewedAt.Add(-time.Hour),
		ImageRefs:           []string{"a", "b"},
		DamageAnalyses: []entity.DamageAnalysis{
			{Severity: valueobject.SeverityModerate, Confidence: 0.7, DamageTypes: []string{"dent"}},
			entity.FailedAnalysis("timeout"),
		},
		Severity:        valueobject.SeverityModerate,
		EstimatedAmount: 2500,
		FinalAmount:     &amount,
		Status:          valueobject.ClaimStatusApproved,
		ReviewNotes:     &notes,
		ReviewedAt:      &reviewedAt,
		ReviewedBy:      &reviewer,
	}

	row, err := newClaimRow(c)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, row.ImageRefs)

	back, err := row.toEntity()
	require.NoError(t, err)
	assert.Equal(t, c.VehicleInfo, back.VehicleInfo)
	assert.Equal(t, c.ImageRefs, back.ImageRefs)
	assert.Equal(t, c.DamageAnalyses, back.DamageAnalyses)
	assert.Equal(t, reviewer, *back.ReviewedBy)
	assert.Equal(t, valueobject.ClaimStatusApproved, back.Status)
}

func TestClaimRow_NilSlicesStoredAsEmptyArrays(t *testing.T) {
	row, err := newClaimRow(&entity.Claim{})
	require.NoError(t, err)
	assert.Equal(t, "[]", row.ImageRefs)
	assert.Equal(t, "[]", row.DamageAnalyses)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: claimNumberConstraint})
	assert.True(t, isUniqueViolation(err, claimNumberConstraint))
	assert.False(t, isUniqueViolation(err, userEmailConstraint))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503", Constraint: claimNumberConstraint}, claimNumberConstraint))
	assert.False(t, isUniqueViolation(fmt.Errorf("plain"), claimNumberConstraint))
}
