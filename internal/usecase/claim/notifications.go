package claim

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/entity"
	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
	"github.com/ignatzorin/autoclaim-backend/internal/goroutine"
)

const DefaultNotifyTimeout = 10 * time.Second

// ClaimNotifier отправляет уведомления о заявках в фоне. Ошибки доставки
// логируются и никогда не возвращаются вызывающему.
type ClaimNotifier struct {
	users    repository.UserRepository
	notifier repository.Notifier
	events   repository.ClaimEventPublisher
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewClaimNotifier создаёт отправитель уведомлений; events может быть nil.
func NewClaimNotifier(users repository.UserRepository, notifier repository.Notifier, events repository.ClaimEventPublisher, timeout time.Duration, log logrus.FieldLogger) *ClaimNotifier {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	return &ClaimNotifier{users: users, notifier: notifier, events: events, timeout: timeout, log: log}
}

func (n *ClaimNotifier) ClaimSubmitted(ctx context.Context, claim *entity.Claim, owner *entity.User) {
	n.publish(claim, repository.ClaimEventSubmitted)

	msg := SubmittedMessage(claim, owner.DisplayName)
	claimID, address := claim.ID, owner.Email
	n.spawn(ctx, func(ctx context.Context) {
		n.send(ctx, claimID, address, msg)
	})
}

func (n *ClaimNotifier) StatusChanged(ctx context.Context, claim *entity.Claim) {
	n.publish(claim, repository.ClaimEventStatusChanged)

	msg, ok := StatusChangedMessage(claim)
	if !ok {
		return
	}

	claimID, ownerID := claim.ID, claim.UserID
	n.spawn(ctx, func(ctx context.Context) {
		owner, err := n.users.FindByID(ctx, ownerID)
		if err != nil {
			n.log.WithField("claim_id", claimID).WithError(err).
				Warn("не удалось найти владельца заявки для уведомления")
			return
		}
		n.send(ctx, claimID, owner.Email, msg)
	})
}

// spawn отвязывает уведомление от отмены запроса, сохраняя ограничение по времени.
func (n *ClaimNotifier) spawn(ctx context.Context, fn func(context.Context)) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	goroutine.SafeGoWithContext(detached, func(ctx context.Context) {
		defer cancel()
		fn(ctx)
	})
}

func (n *ClaimNotifier) send(ctx context.Context, claimID uuid.UUID, address string, msg Message) {
	fields := logrus.Fields{"claim_id": claimID, "subject": msg.Subject}
	result, err := n.notifier.Send(ctx, address, msg.Subject, msg.Body)
	if err != nil {
		n.log.WithFields(fields).WithError(err).Warn("не удалось отправить уведомление")
		return
	}
	fields["channel"] = result.Channel
	n.log.WithFields(fields).Debug("уведомление отправлено")
}

func (n *ClaimNotifier) publish(claim *entity.Claim, eventType string) {
	if n.events == nil {
		return
	}
	n.events.PublishClaimEvent(claim.UserID, repository.ClaimEvent{
		Type:        eventType,
		ClaimID:     claim.ID,
		ClaimNumber: claim.ClaimNumber,
		Status:      claim.Status.String(),
	})
}
