package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/usecase/claim"
)

type ClaimResponse struct {
	ID                  uuid.UUID               `json:"id"`
	ClaimNumber         string                  `json:"claimNumber"`
	UserID              uuid.UUID               `json:"userId"`
	VehicleInfo         entity.VehicleInfo      `json:"vehicleInfo"`
	IncidentDescription string                  `json:"incidentDescription"`
	IncidentDate        time.Time               `json:"incidentDate"`
	Location            string                  `json:"location"`
	ImageRefs           []string                `json:"imageRefs"`
	DamageAnalyses      []entity.DamageAnalysis `json:"damageAnalyses"`
	Severity            string                  `json:"severity"`
	EstimatedAmount     float64                 `json:"estimatedAmount"`
	FinalAmount         *float64                `json:"finalAmount"`
	Status              string                  `json:"status"`
	ReviewNotes         *string                 `json:"reviewNotes"`
	ReviewedAt          *time.Time              `json:"reviewedAt"`
	ReviewedBy          *uuid.UUID              `json:"reviewedBy"`
	SubmittedAt         time.Time               `json:"submittedAt"`
	UpdatedAt           time.Time               `json:"updatedAt"`
}

// ClaimEnvelope возвращается операциями, изменяющими заявку.
type ClaimEnvelope struct {
	Message string        `json:"message"`
	Claim   ClaimResponse `json:"claim"`
}

type ClaimListResponse struct {
	Claims      []ClaimResponse `json:"claims"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Total       int             `json:"total"`
}

type StatusChangeResponse struct {
	ID         uuid.UUID `json:"id"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ActorID    uuid.UUID `json:"actorId"`
	Note       *string   `json:"note"`
	CreatedAt  time.Time `json:"createdAt"`
}

type UpdateStatusRequest struct {
	Status      string   `json:"status" binding:"required"`
	ReviewNotes *string  `json:"reviewNotes"`
	FinalAmount *float64 `json:"finalAmount"`
}

// UpdateClaimRequest задаёт административную правку описательных полей заявки.
type UpdateClaimRequest struct {
	VehicleInfo         entity.VehicleInfo `json:"vehicleInfo"`
	IncidentDescription string             `json:"incidentDescription"`
	IncidentDate        string             `json:"incidentDate"`
	Location            string             `json:"location"`
}

type StatusStatsResponse struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

type SeverityStatsResponse struct {
	Count         int     `json:"count"`
	AverageAmount float64 `json:"averageAmount"`
}

type MonthlyStatsResponse struct {
	Month       string  `json:"month"`
	Count       int     `json:"count"`
	TotalAmount float64 `json:"totalAmount"`
}

type StatisticsResponse struct {
	Total      int                              `json:"total"`
	ByStatus   map[string]StatusStatsResponse   `json:"byStatus"`
	BySeverity map[string]SeverityStatsResponse `json:"bySeverity"`
	Monthly    []MonthlyStatsResponse           `json:"monthly"`
}

func ToClaimResponse(c *entity.Claim) ClaimResponse {
	refs := c.ImageRefs
	if refs == nil {
		refs = []string{}
	}
	analyses := c.DamageAnalyses
	if analyses == nil {
		analyses = []entity.DamageAnalysis{}
	}
	return ClaimResponse{
		ID:                  c.ID,
		ClaimNumber:         c.ClaimNumber,
		UserID:              c.UserID,
		VehicleInfo:         c.VehicleInfo,
		IncidentDescription: c.IncidentDescription,
		IncidentDate:        c.IncidentDate,
		Location:            c.Location,
		ImageRefs:           refs,
		DamageAnalyses:      analyses,
		Severity:            c.Severity.String(),
		EstimatedAmount:     c.EstimatedAmount,
		FinalAmount:         c.FinalAmount,
		Status:              c.Status.String(),
		ReviewNotes:         c.ReviewNotes,
		ReviewedAt:          c.ReviewedAt,
		ReviewedBy:          c.ReviewedBy,
		SubmittedAt:         c.SubmittedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func ToClaimListResponse(page *claim.ClaimPage) ClaimListResponse {
	claims := make([]ClaimResponse, 0, len(page.Claims))
	for _, c := range page.Claims {
		claims = append(claims, ToClaimResponse(c))
	}
	return ClaimListResponse{
		Claims:      claims,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		Total:       page.Total,
	}
}

func ToStatusChangeResponses(history []entity.StatusChange) []StatusChangeResponse {
	out := make([]StatusChangeResponse, 0, len(history))
	for _, h := range history {
		out = append(out, StatusChangeResponse{
			ID:         h.ID,
			FromStatus: h.FromStatus.String(),
			ToStatus:   h.ToStatus.String(),
			ActorID:    h.ActorID,
			Note:       h.Note,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out
}

func ToStatisticsResponse(s *entity.ClaimStatistics) StatisticsResponse {
	resp := StatisticsResponse{
		Total:      s.Total,
		ByStatus:   make(map[string]StatusStatsResponse, len(s.ByStatus)),
		BySeverity: make(map[string]SeverityStatsResponse, len(s.BySeverity)),
		Monthly:    make([]MonthlyStatsResponse, 0, len(s.Monthly)),
	}
	for status, b := range s.ByStatus {
		resp.ByStatus[status.String()] = StatusStatsResponse{Count: b.Count, TotalAmount: b.TotalAmount}
	}
	for severity, b := range s.BySeverity {
		resp.BySeverity[severity.String()] = SeverityStatsResponse{Count: b.Count, AverageAmount: b.AverageAmount}
	}
	for _, m := range s.Monthly {
		resp.Monthly = append(resp.Monthly, MonthlyStatsResponse{Month: m.Month, Count: m.Count, TotalAmount: m.TotalAmount})
	}
	return resp
}

// ParseIncidentDate принимает RFC3339 или дату без времени (2006-01-02).
func ParseIncidentDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
