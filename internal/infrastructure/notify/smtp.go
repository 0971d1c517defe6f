package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"

	"github.com/ignatzorin/autoclaim-backend/internal/domain/repository"
)

const ChannelEmail = "email"

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

// sendFunc доставляет готовое письмо; в тестах подменяется.
type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPNotifier отправляет письма (text/plain + text/html) через SMTP-сервер.
type SMTPNotifier struct {
	from string
	send sendFunc
	now  func() time.Time
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("notify: SMTP host обязателен")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("notify: адрес отправителя обязателен")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithPort(port),
		mail.WithTimeout(timeout),
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: настройка SMTP-клиента: %w", err)
	}

	return &SMTPNotifier{
		from: cfg.From,
		send: func(ctx context.Context, msg *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, msg)
		},
		now: time.Now,
	}, nil
}

// Send собирает письмо с текстовой и HTML-версией и отправляет его.
// Отмена ctx прерывает соединение с сервером.
func (n *SMTPNotifier) Send(ctx context.Context, address, subject, body string) (repository.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return repository.DeliveryResult{}, err
	}
	address = strings.TrimSpace(address)
	if address == "" || strings.ContainsAny(address, "\r\n") {
		return repository.DeliveryResult{}, fmt.Errorf("notify: некорректный адрес получателя %q", address)
	}

	msg, messageID, err := n.buildMessage(address, subject, body)
	if err != nil {
		return repository.DeliveryResult{}, err
	}
	if err := n.send(ctx, msg); err != nil {
		return repository.DeliveryResult{}, fmt.Errorf("notify: не удалось отправить письмо: %w", err)
	}

	return repository.DeliveryResult{Channel: ChannelEmail, MessageID: messageID}, nil
}

func (n *SMTPNotifier) buildMessage(address, subject, body string) (*mail.Msg, string, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, "", fmt.Errorf("notify: некорректный адрес отправителя: %w", err)
	}
	if err := msg.To(address); err != nil {
		return nil, "", fmt.Errorf("notify: некорректный адрес получателя %q: %w", address, err)
	}

	id := uuid.NewString() + "@" + domainOf(n.from)
	msg.SetMessageIDWithValue(id)
	msg.SetDateWithValue(n.now())
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	msg.AddAlternativeString(mail.TypeTextHTML, renderHTML(subject, body))

	return msg, "<" + id + ">", nil
}

// renderHTML оборачивает текст письма в простую HTML-разметку:
// пустые строки делят абзацы, переводы строк становятся <br>.
func renderHTML(subject, body string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>`)
	b.WriteString(html.EscapeString(subject))
	b.WriteString(`</title></head><body style="font-family:Arial,sans-serif;line-height:1.5;color:#333">`)
	for _, para := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(lines[i])
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return strings.Trim(address[i+1:], "> ")
	}
	return "localhost"
}
