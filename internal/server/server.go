// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/acme/autocert"

	"github.com/markb/reminderd/internal/auth"
	"github.com/markb/reminderd/internal/db"
	"github.com/markb/reminderd/internal/log"
	"github.com/markb/reminderd/internal/mail"
	"github.com/markb/reminderd/internal/mailconfig"
	"github.com/markb/reminderd/internal/notify"
	"github.com/markb/reminderd/internal/reminder"
	"github.com/markb/reminderd/internal/settings"
	"github.com/markb/reminderd/internal/status"
)

type Server struct {
	db          *db.DB
	router      *chi.Mux
	authService *auth.Service
	reminders   *reminder.Store
	settings    *settings.Store
	mailConfigs *mailconfig.Store
	catchMailer *mail.CatchMailer
	deliverer   *notify.Deliverer
	hub         *status.Hub

	// HTTP server for graceful shutdown
	httpServer *http.Server

	// HTTPS fields
	httpsServer  *http.Server
	httpRedirect *http.Server
	autocertMgr  *autocert.Manager
}

// Config holds server configuration.
type Config struct {
	JWTSecret string
}

func New(database *db.DB, cfg Config) *Server {
	settingsStore := settings.NewStore(database)
	mailConfigStore := mailconfig.NewStore(database)

	s := &Server{
		db:          database,
		router:      chi.NewRouter(),
		authService: auth.NewService(cfg.JWTSecret),
		reminders:   reminder.NewStore(database),
		settings:    settingsStore,
		mailConfigs: mailConfigStore,
		catchMailer: mail.NewCatchMailer(database),
		deliverer:   notify.NewDeliverer(database, settingsStore, mailConfigStore, nil, nil),
		hub:         status.NewHub(),
	}

	s.setupRoutes()
	return s
}

// Reminders exposes the reminder store for wiring the dispatcher.
func (s *Server) Reminders() *reminder.Store {
	return s.reminders
}

// Deliverer exposes the deliverer for wiring the dispatcher.
func (s *Server) Deliverer() *notify.Deliverer {
	return s.deliverer
}

// Hub exposes the status hub for wiring the dispatcher.
func (s *Server) Hub() *status.Hub {
	return s.hub
}

func (s *Server) setupRoutes() {
	// CORS middleware for browser-based apps
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", s.handleListReminders)
			r.Post("/", s.handleCreateReminder)
			r.Get("/{id}", s.handleGetReminder)
			r.Patch("/{id}", s.handleUpdateReminder)
			r.Delete("/{id}", s.handleDeleteReminder)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Patch("/", s.handleUpdateSettings)
		})

		// Mail configuration carries SMTP credentials; service key only.
		r.Route("/mail", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.requireServiceRole)
				r.Get("/config", s.handleGetMailConfig)
				r.Put("/config", s.handleSaveMailConfig)
				r.Delete("/config/{id}", s.handleDeleteMailConfig)
			})
			r.Get("/emails", s.handleListCaughtEmails)
			r.Delete("/emails", s.handleClearCaughtEmails)
			r.Post("/test", s.handleTestMail)
		})

		r.Get("/status", s.handleStatus)
		r.Get("/logs/recent", s.handleRecentLogs)
	})

	// WebSocket endpoint does its own key check (query param allowed,
	// browsers cannot set headers on WS upgrade requests).
	s.router.Get("/api/v1/status/ws", s.handleStatusWebSocket)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events": s.hub.Snapshot(),
		"stats":  s.hub.Stats(),
	})
}

func (s *Server) handleStatusWebSocket(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("apikey")
	if key == "" {
		key = r.Header.Get("apikey")
	}
	if _, err := s.authService.ValidateAPIKey(key); err != nil {
		http.Error(w, "Invalid API key", http.StatusUnauthorized)
		return
	}
	s.hub.HandleWebSocket(w, r)
}

func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	n := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid_lines", "lines must be a positive integer")
			return
		}
		n = parsed
	}

	lines := log.GetBufferedLogs(n)
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server(s).
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpsServer != nil {
		if err := s.httpsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTPS server: %w", err))
		}
	}
	if s.httpRedirect != nil {
		if err := s.httpRedirect.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP redirect server: %w", err))
		}
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, errCode, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}
