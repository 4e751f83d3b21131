package mailer

import (
	"context"
	"strings"

	"github.com/diagnosis/guesthouse-bookings/pkg/config"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message and returns the provider message id when there is one.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// FromConfig picks MailerSend when an API key is set, the dev logger in dev
// mode, and SMTP otherwise.
func FromConfig(cfg config.EmailConfig) Sender {
	switch {
	case strings.TrimSpace(cfg.MailerSendKey) != "":
		return NewMailerSend(cfg.MailerSendKey, cfg.FromName, cfg.SMTPFrom)
	case cfg.DevMode:
		return DevSender{}
	default:
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
	}
}

// DevSender writes messages to the log instead of sending them.
type DevSender struct{}

func (DevSender) Send(ctx context.Context, msg Message) (string, error) {
	logger.InfoContext(ctx, "dev mail",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return "dev", nil
}
