package valueobject

import "github.com/ignatzorin/autoclaim-backend/internal/pkg/apperror"

type ClaimStatus string

const (
	ClaimStatusPending     ClaimStatus = "pending"
	ClaimStatusUnderReview ClaimStatus = "under-review"
	ClaimStatusApproved    ClaimStatus = "approved"
	ClaimStatusRejected    ClaimStatus = "rejected"
)

// claimTransitions перечисляет допустимые переходы.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimStatusPending:     {ClaimStatusUnderReview, ClaimStatusApproved, ClaimStatusRejected},
	ClaimStatusUnderReview: {ClaimStatusApproved, ClaimStatusRejected},
	ClaimStatusApproved:    {},
	ClaimStatusRejected:    {},
}

func (s ClaimStatus) IsValid() bool {
	_, ok := claimTransitions[s]
	return ok
}

func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected
}

func (s ClaimStatus) CanTransitionTo(newStatus ClaimStatus) bool {
	for _, status := range claimTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// AllowedTransitions возвращает копию списка статусов, доступных из текущего.
func (s ClaimStatus) AllowedTransitions() []ClaimStatus {
	allowed := claimTransitions[s]
	out := make([]ClaimStatus, len(allowed))
	copy(out, allowed)
	return out
}

func (s ClaimStatus) String() string {
	return string(s)
}

func NewClaimStatus(status string) (ClaimStatus, error) {
	s := ClaimStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заявки")
	}
	return s, nil
}
