package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
)

const ChannelLog = "log"

// LogNotifier пишет уведомления в лог вместо отправки. Используется, когда
// SMTP не настроен.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, address, subject, body string) (repository.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return repository.DeliveryResult{}, err
	}
	id := uuid.NewString()
	n.log.WithFields(logrus.Fields{
		"to":         address,
		"subject":    subject,
		"message_id": id,
	}).Info(body)
	return repository.DeliveryResult{Channel: ChannelLog, MessageID: id}, nil
}
