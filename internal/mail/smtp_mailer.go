// internal/mail/smtp_mailer.go
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/markb/reminderd/internal/mailconfig"
	"github.com/markb/reminderd/internal/smtp"
)

// SMTPMailer delivers email through the hand-written SMTP transport.
// One Send call opens one session; a failed session surfaces the
// failing protocol stage in its error and is never retried here.
type SMTPMailer struct {
	transport *smtp.Transport
}

// NewSMTPMailer creates a mailer for the given mail configuration. The
// sender identity on the wire is the configuration's username.
func NewSMTPMailer(cfg *mailconfig.Config) (*SMTPMailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mail configuration: %w", err)
	}
	return &SMTPMailer{
		transport: smtp.NewTransport(smtp.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  30 * time.Second,
		}),
	}, nil
}

// Send executes exactly one SMTP transaction for the message.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	if msg.Date.IsZero() {
		msg.Date = time.Now()
	}
	return m.transport.Send(ctx, msg.From, msg.To, msg.Encode())
}
