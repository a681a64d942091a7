package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/markb/reminderd/internal/db"
	"github.com/markb/reminderd/internal/mail"
	"github.com/markb/reminderd/internal/mailconfig"
	"github.com/markb/reminderd/internal/reminder"
	"github.com/markb/reminderd/internal/settings"
)

// ErrNotConfigured means delivery is switched off: either no recipient
// is set or, in SMTP mode, no active mail configuration exists. Due
// reminders stay pending until delivery is configured.
var ErrNotConfigured = errors.New("notification delivery not configured")

// localSender is the envelope sender used by the log and catch modes,
// which have no SMTP account to speak for.
const localSender = "reminderd@localhost"

// Receipt describes one successful delivery.
type Receipt struct {
	Recipient   string
	Subject     string
	Mode        string
	DeliveredAt time.Time
}

// Deliverer builds and sends the notification for a single reminder.
// The mail mode and configuration are resolved on every call, so
// settings changes take effect without a restart.
type Deliverer struct {
	settings    *settings.Store
	mailConfigs *mailconfig.Store
	database    *db.DB
	logWriter   io.Writer // nil means stdout
	clock       Clock

	// smtpMailer, when set, replaces the transport built from the
	// active configuration. Tests use it to script SMTP outcomes.
	smtpMailer mail.Mailer
}

// NewDeliverer creates a Deliverer. logWriter receives log-mode output
// and may be nil for stdout.
func NewDeliverer(database *db.DB, settingsStore *settings.Store, mailConfigs *mailconfig.Store, logWriter io.Writer, clock Clock) *Deliverer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Deliverer{
		settings:    settingsStore,
		mailConfigs: mailConfigs,
		database:    database,
		logWriter:   logWriter,
		clock:       clock,
	}
}

// Deliver sends the notification email for one due reminder. One call
// is one attempt: a failed SMTP session is reported, never retried
// internally.
func (d *Deliverer) Deliver(ctx context.Context, rem *reminder.Reminder) (*Receipt, error) {
	recipient, err := d.settings.Get(settings.KeyNotifyRecipient)
	if err != nil {
		return nil, fmt.Errorf("failed to read notify recipient: %w", err)
	}
	if recipient == "" {
		return nil, ErrNotConfigured
	}

	mode, err := d.settings.Get(settings.KeyMailMode)
	if err != nil {
		return nil, fmt.Errorf("failed to read mail mode: %w", err)
	}
	if mode == "" {
		mode = mail.ModeLog
	}
	if !mail.ValidMode(mode) {
		return nil, fmt.Errorf("unknown mail mode %q", mode)
	}

	mailer, sender, err := d.mailerFor(mode)
	if err != nil {
		return nil, err
	}

	msg := mail.BuildReminderMessage(rem, recipient, sender, d.clock.Now())
	if err := mailer.Send(ctx, msg); err != nil {
		return nil, err
	}

	return &Receipt{
		Recipient:   recipient,
		Subject:     msg.Subject,
		Mode:        mode,
		DeliveredAt: d.clock.Now(),
	}, nil
}

func (d *Deliverer) mailerFor(mode string) (mail.Mailer, string, error) {
	switch mode {
	case mail.ModeCatch:
		return mail.NewCatchMailer(d.database), localSender, nil
	case mail.ModeSMTP:
		if d.smtpMailer != nil {
			return d.smtpMailer, localSender, nil
		}
		cfg, err := d.mailConfigs.ActiveForUsage(mailconfig.UsageReminder)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load mail configuration: %w", err)
		}
		if cfg == nil {
			return nil, "", ErrNotConfigured
		}
		m, err := mail.NewSMTPMailer(cfg)
		if err != nil {
			return nil, "", err
		}
		return m, cfg.Username, nil
	default:
		return mail.NewLogMailer(d.logWriter), localSender, nil
	}
}
