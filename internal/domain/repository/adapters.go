package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
)

// ObjectStore хранит загруженные изображения и выдаёт на них ссылки.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, originalName, mimeType string) (string, error)
	// Delete никогда не возвращает ошибку: false означает, что объект не удалён.
	Delete(ctx context.Context, reference string) bool
}

type ImageAnalyzer interface {
	Analyze(ctx context.Context, reference string) (entity.DamageAnalysis, error)
}

type DeliveryResult struct {
	Channel   string
	MessageID string
}

type Notifier interface {
	Send(ctx context.Context, address, subject, body string) (DeliveryResult, error)
}

const (
	ClaimEventSubmitted     = "claim_submitted"
	ClaimEventStatusChanged = "claim_status_changed"
)

type ClaimEvent struct {
	Type        string    `json:"type"`
	ClaimID     uuid.UUID `json:"claimId"`
	ClaimNumber string    `json:"claimNumber"`
	Status      string    `json:"status"`
}

// ClaimEventPublisher доставляет события владельцу заявки в реальном времени.
type ClaimEventPublisher interface {
	PublishClaimEvent(userID uuid.UUID, event ClaimEvent)
}
