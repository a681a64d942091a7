// internal/mail/catch_mailer.go
package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/markb/reminderd/internal/db"
)

// CaughtEmail represents a stored email in catch mode.
type CaughtEmail struct {
	ID         string    `json:"id"`
	To         string    `json:"to"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	BodyHTML   string    `json:"body_html,omitempty"`
	BodyText   string    `json:"body_text,omitempty"`
	ReminderID string    `json:"reminder_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CatchMailer stores emails in the database instead of delivering them,
// for local development and the portal's mail viewer.
type CatchMailer struct {
	db *db.DB
}

// NewCatchMailer creates a new CatchMailer.
func NewCatchMailer(database *db.DB) *CatchMailer {
	return &CatchMailer{db: database}
}

// Send stores the email in the database.
func (m *CatchMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)

	var reminderID *string
	if msg.ReminderID != "" {
		reminderID = &msg.ReminderID
	}

	_, err := m.db.Exec(`
		INSERT INTO sent_emails (id, to_email, from_email, subject, body_html, body_text, reminder_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, msg.To, msg.From, msg.Subject, msg.BodyHTML, msg.BodyText, reminderID, now)
	if err != nil {
		return fmt.Errorf("failed to store email: %w", err)
	}

	return nil
}

// ListEmails returns caught emails, newest first.
func (m *CatchMailer) ListEmails(limit, offset int) ([]CaughtEmail, error) {
	rows, err := m.db.Query(`
		SELECT id, to_email, from_email, subject, body_html, body_text, reminder_id, created_at
		FROM sent_emails
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var emails []CaughtEmail
	for rows.Next() {
		var e CaughtEmail
		var bodyHTML, bodyText, reminderID *string
		var createdAt string

		err := rows.Scan(&e.ID, &e.To, &e.From, &e.Subject, &bodyHTML, &bodyText, &reminderID, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}

		if bodyHTML != nil {
			e.BodyHTML = *bodyHTML
		}
		if bodyText != nil {
			e.BodyText = *bodyText
		}
		if reminderID != nil {
			e.ReminderID = *reminderID
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

		emails = append(emails, e)
	}

	return emails, rows.Err()
}

// Count returns the total number of caught emails.
func (m *CatchMailer) Count() (int, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM sent_emails").Scan(&count)
	return count, err
}

// ClearAll removes all caught emails.
func (m *CatchMailer) ClearAll() error {
	_, err := m.db.Exec("DELETE FROM sent_emails")
	return err
}
