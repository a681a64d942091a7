// internal/server/mail_handlers.go
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markb/reminderd/internal/mailconfig"
	"github.com/markb/reminderd/internal/notify"
	"github.com/markb/reminderd/internal/reminder"
)

// maskedPassword is returned in place of the stored SMTP password and
// accepted on save to mean "keep the current one".
const maskedPassword = "********"

type mailConfigResponse struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	UsageType string `json:"usage_type"`
	Active    bool   `json:"active"`
}

type saveMailConfigRequest struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Active   bool   `json:"active"`
}

func maskConfig(cfg *mailconfig.Config) mailConfigResponse {
	resp := mailConfigResponse{
		ID:        cfg.ID,
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		UsageType: cfg.UsageType,
		Active:    cfg.Active,
	}
	if cfg.Password != "" {
		resp.Password = maskedPassword
	}
	return resp
}

func (s *Server) handleGetMailConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.mailConfigs.ActiveForUsage(mailconfig.UsageReminder)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "config_failed", err.Error())
		return
	}
	if cfg == nil {
		s.writeError(w, http.StatusNotFound, "not_configured", "No active mail configuration")
		return
	}
	s.writeJSON(w, http.StatusOK, maskConfig(cfg))
}

func (s *Server) handleSaveMailConfig(w http.ResponseWriter, r *http.Request) {
	var req saveMailConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body")
		return
	}

	cfg := &mailconfig.Config{
		ID:        req.ID,
		Host:      req.Host,
		Port:      req.Port,
		Username:  req.Username,
		Password:  req.Password,
		UsageType: mailconfig.UsageReminder,
		Active:    req.Active,
	}

	// A masked or omitted password on an existing config keeps the
	// stored one, so the portal never has to echo credentials back.
	if (req.Password == "" || req.Password == maskedPassword) && req.ID != "" {
		existing, err := s.mailConfigs.Get(req.ID)
		if err == nil {
			cfg.Password = existing.Password
		}
	}

	saved, err := s.mailConfigs.Save(cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, maskConfig(saved))
}

func (s *Server) handleDeleteMailConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.mailConfigs.Delete(id); err != nil {
		if errors.Is(err, mailconfig.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "Mail configuration not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCaughtEmails(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	emails, err := s.catchMailer.ListEmails(limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	count, err := s.catchMailer.Count()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "count_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"emails": emails,
		"total":  count,
	})
}

func (s *Server) handleClearCaughtEmails(w http.ResponseWriter, r *http.Request) {
	if err := s.catchMailer.ClearAll(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "clear_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTestMail sends a synthetic reminder through the configured
// delivery path, so operators can verify settings end to end.
func (s *Server) handleTestMail(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	rem := &reminder.Reminder{
		ID:        "test-" + now.Format("20060102150405"),
		Title:     "Test notification",
		Note:      "Sent from the reminderd settings page.",
		StartDate: now,
	}

	receipt, err := s.deliverer.Deliver(r.Context(), rem)
	if err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			s.writeError(w, http.StatusPreconditionFailed, "not_configured", "Set a recipient (and mail configuration for SMTP mode) first")
			return
		}
		s.writeError(w, http.StatusBadGateway, "delivery_failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"recipient":    receipt.Recipient,
		"subject":      receipt.Subject,
		"mode":         receipt.Mode,
		"delivered_at": receipt.DeliveredAt,
	})
}
