// internal/reminder/store.go
package reminder

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/markb/reminderd/internal/db"
)

// ErrNotFound is returned when a reminder id does not exist.
var ErrNotFound = errors.New("reminder not found")

// Store persists reminders in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new reminder and returns it with its generated id.
func (s *Store) Create(title, note string, startDate time.Time) (*Reminder, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	r := &Reminder{
		ID:        uuid.New().String(),
		Title:     title,
		Note:      note,
		StartDate: startDate.UTC(),
	}

	var noteVal *string
	if note != "" {
		noteVal = &note
	}

	_, err := s.db.Exec(`
		INSERT INTO reminders (id, title, note, start_date, notified)
		VALUES (?, ?, ?, ?, 0)
	`, r.ID, r.Title, noteVal, r.StartDate.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	return s.Get(r.ID)
}

// Get returns a single reminder by id.
func (s *Store) Get(id string) (*Reminder, error) {
	row := s.db.QueryRow(`
		SELECT id, title, note, start_date, notified, created_at, updated_at
		FROM reminders WHERE id = ?
	`, id)
	r, err := scanReminder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// List returns all reminders, soonest trigger first.
func (s *Store) List() ([]Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, title, note, start_date, notified, created_at, updated_at
		FROM reminders ORDER BY start_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		r, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// ListDue returns reminders whose trigger time is at or before now and
// whose notified flag is still unset.
func (s *Store) ListDue(now time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(`
		SELECT id, title, note, start_date, notified, created_at, updated_at
		FROM reminders
		WHERE notified = 0 AND start_date <= ?
		ORDER BY start_date ASC
	`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer rows.Close()

	var due []Reminder
	for rows.Next() {
		r, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, err
		}
		due = append(due, *r)
	}
	return due, rows.Err()
}

// MarkNotified sets the notified flag. The write is unconditional: a
// concurrent cycle that already delivered the same reminder wins the
// same way, which keeps the at-least-once delivery semantics.
func (s *Store) MarkNotified(id string) error {
	res, err := s.db.Exec(`
		UPDATE reminders SET notified = 1, updated_at = datetime('now') WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder notified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Update replaces the editable fields. Editing a reminder re-arms it:
// the portal clears the notified flag when the trigger time changes.
func (s *Store) Update(id, title, note string, startDate time.Time, rearm bool) (*Reminder, error) {
	var noteVal *string
	if note != "" {
		noteVal = &note
	}

	notifiedExpr := "notified"
	if rearm {
		notifiedExpr = "0"
	}

	res, err := s.db.Exec(fmt.Sprintf(`
		UPDATE reminders
		SET title = ?, note = ?, start_date = ?, notified = %s, updated_at = datetime('now')
		WHERE id = ?
	`, notifiedExpr), title, noteVal, startDate.UTC().Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

// Delete removes a reminder.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReminder(scan func(dest ...any) error) (*Reminder, error) {
	var r Reminder
	var note *string
	var startDate, createdAt, updatedAt string
	var notified int

	if err := scan(&r.ID, &r.Title, &note, &startDate, &notified, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan reminder: %w", err)
	}

	if note != nil {
		r.Note = *note
	}
	r.Notified = notified != 0
	r.StartDate, _ = time.Parse(time.RFC3339, startDate)
	r.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	r.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)

	return &r, nil
}
