// internal/server/reminder_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markb/reminderd/internal/reminder"
)

type createReminderRequest struct {
	Title     string    `json:"title"`
	Note      string    `json:"note"`
	StartDate time.Time `json:"start_date"`
}

type updateReminderRequest struct {
	Title     *string    `json:"title"`
	Note      *string    `json:"note"`
	StartDate *time.Time `json:"start_date"`

	// Rearm clears the notified flag so the reminder fires again.
	Rearm bool `json:"rearm"`
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	reminders, err := s.reminders.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if reminders == nil {
		reminders = []reminder.Reminder{}
	}
	s.writeJSON(w, http.StatusOK, reminders)
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req createReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}
	if req.Title == "" {
		s.writeError(w, http.StatusBadRequest, "missing_title", "title is required")
		return
	}
	if req.StartDate.IsZero() {
		s.writeError(w, http.StatusBadRequest, "missing_start_date", "start_date is required")
		return
	}

	rem, err := s.reminders.Create(req.Title, req.Note, req.StartDate)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "create_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, rem)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.reminders.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "Reminder not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "get_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	existing, err := s.reminders.Get(id)
	if err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "Reminder not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "get_failed", err.Error())
		return
	}

	title := existing.Title
	if req.Title != nil {
		title = *req.Title
	}
	note := existing.Note
	if req.Note != nil {
		note = *req.Note
	}
	startDate := existing.StartDate
	if req.StartDate != nil {
		startDate = *req.StartDate
	}
	if title == "" {
		s.writeError(w, http.StatusBadRequest, "missing_title", "title is required")
		return
	}

	// Moving the trigger into the future rearms the reminder as well.
	rearm := req.Rearm || (req.StartDate != nil && startDate.After(time.Now()))

	updated, err := s.reminders.Update(id, title, note, startDate, rearm)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.reminders.Delete(id); err != nil {
		if errors.Is(err, reminder.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "Reminder not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	s.hub.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}
