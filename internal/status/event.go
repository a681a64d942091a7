// Package status broadcasts delivery state transitions for reminders
// over WebSocket so the portal can show live notification progress.
package status

import (
	"encoding/json"
	"time"
)

// Delivery states.
const (
	StatePending = "pending"
	StateSuccess = "success"
	StateFailure = "failure"
)

// Event is one delivery state transition for a reminder.
type Event struct {
	ReminderID string    `json:"reminder_id"`
	State      string    `json:"state"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// Encode serializes the event for the wire.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a wire event.
func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
