// Package reminder provides the reminder record and its SQLite store.
package reminder

import "time"

// Reminder is a scheduled item the portal wants to be emailed about.
type Reminder struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Note      string    `json:"note,omitempty"`
	StartDate time.Time `json:"start_date"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Due reports whether the reminder is eligible for notification at now:
// its trigger time has passed and it has not been notified yet.
func (r *Reminder) Due(now time.Time) bool {
	return !r.Notified && !r.StartDate.After(now)
}
