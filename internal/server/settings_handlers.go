// internal/server/settings_handlers.go
package server

import (
	"encoding/json"
	"net/http"

	"github.com/markb/reminderd/internal/mail"
	"github.com/markb/reminderd/internal/settings"
)

type settingsResponse struct {
	NotifyRecipient string `json:"notify_recipient"`
	MailMode        string `json:"mail_mode"`
}

type updateSettingsRequest struct {
	NotifyRecipient *string `json:"notify_recipient"`
	MailMode        *string `json:"mail_mode"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	recipient, err := s.settings.Get(settings.KeyNotifyRecipient)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
		return
	}
	mode, err := s.settings.Get(settings.KeyMailMode)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
		return
	}
	if mode == "" {
		mode = mail.ModeLog
	}

	s.writeJSON(w, http.StatusOK, settingsResponse{
		NotifyRecipient: recipient,
		MailMode:        mode,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	if req.MailMode != nil && *req.MailMode != "" && !mail.ValidMode(*req.MailMode) {
		s.writeError(w, http.StatusBadRequest, "invalid_mail_mode", "mail_mode must be log, catch, or smtp")
		return
	}

	if req.NotifyRecipient != nil {
		if err := s.settings.Set(settings.KeyNotifyRecipient, *req.NotifyRecipient); err != nil {
			s.writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
			return
		}
	}
	if req.MailMode != nil {
		if err := s.settings.Set(settings.KeyMailMode, *req.MailMode); err != nil {
			s.writeError(w, http.StatusInternalServerError, "settings_failed", err.Error())
			return
		}
	}

	s.handleGetSettings(w, r)
}
