// Package mail provides email building and sending for reminderd.
package mail

import (
	"context"
	"fmt"
	"time"
)

// Mail modes
const (
	ModeLog   = "log"
	ModeCatch = "catch"
	ModeSMTP  = "smtp"
)

// ValidMode reports whether mode names a supported mail mode.
func ValidMode(mode string) bool {
	return mode == ModeLog || mode == ModeCatch || mode == ModeSMTP
}

// Message represents one outbound email. It is built per delivery
// attempt and never reused across attempts.
type Message struct {
	To         string
	From       string
	Subject    string
	BodyHTML   string
	BodyText   string
	ReminderID string
	Date       time.Time
}

// Validate checks if the message has all required fields.
func (m *Message) Validate() error {
	if m.To == "" {
		return fmt.Errorf("to address is required")
	}
	if m.From == "" {
		return fmt.Errorf("from address is required")
	}
	if m.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if m.BodyHTML == "" && m.BodyText == "" {
		return fmt.Errorf("body (html or text) is required")
	}
	return nil
}

// Mailer is the interface for sending emails.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
