// Package email builds and delivers the platform's outbound mail.
package email

import (
	"context"
	"fmt"

	"github.com/seiixin/gunwadex/internal/config"
	"github.com/seiixin/gunwadex/internal/logger"
	"go.uber.org/zap"
)

// Message is a single outbound email
type Message struct {
	Template string // metrics label, e.g. "contact_notification"
	To       []string
	ReplyTo  []string
	Subject  string
	Text     string
	HTML     string
}

// Mailer delivers messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var (
	_ Mailer = (*SESMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)

// New builds the mailer selected by MAIL_BACKEND
func New(cfg config.MailConfig) (Mailer, error) {
	switch cfg.Backend {
	case "ses":
		return NewSESMailer(cfg.AWSRegion, cfg.FromEmail, cfg.FromName)
	case "log", "":
		return &LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unknown mail backend %q", cfg.Backend)
	}
}

// LogMailer writes messages to the application log instead of sending them
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	logger.Log.Info("Mail (log backend)",
		zap.String("template", msg.Template),
		zap.Strings("to", msg.To),
		zap.Strings("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.Int("text_bytes", len(msg.Text)),
	)
	return nil
}
