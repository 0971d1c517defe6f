package claim

import (
	"fmt"
	"strconv"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/valueobject"
)

type Message struct {
	Subject string
	Body    string
}

func SubmittedMessage(claim *entity.Claim, userName string) Message {
	return Message{
		Subject: "Claim Submitted Successfully - " + claim.ClaimNumber,
		Body: fmt.Sprintf(
			"Dear %s,\n\nYour insurance claim %s has been successfully submitted and is under review.\n\nBest regards,\nAutoClaim Team",
			userName, claim.ClaimNumber,
		),
	}
}

// StatusChangedMessage возвращает false для статусов без шаблона.
func StatusChangedMessage(claim *entity.Claim) (Message, bool) {
	var text string
	switch claim.Status {
	case valueobject.ClaimStatusUnderReview:
		text = "Your claim is now under review by our team."
	case valueobject.ClaimStatusApproved:
		text = "Congratulations! Your claim has been approved"
		if claim.FinalAmount != nil {
			text += " for $" + formatAmount(*claim.FinalAmount)
		}
		text += "."
	case valueobject.ClaimStatusRejected:
		text = "Unfortunately, your claim has been rejected. Please check the review notes for details."
	default:
		return Message{}, false
	}

	if claim.ReviewNotes != nil && *claim.ReviewNotes != "" {
		text += "\n\nNotes: " + *claim.ReviewNotes
	}

	return Message{
		Subject: "Claim " + claim.ClaimNumber + " Status Update",
		Body:    text,
	}, true
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
