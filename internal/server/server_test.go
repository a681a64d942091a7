// internal/server/server_test.go
package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markb/reminderd/internal/auth"
	"github.com/markb/reminderd/internal/db"
	"github.com/markb/reminderd/internal/mail"
	"github.com/markb/reminderd/internal/status"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	path := t.TempDir() + "/test.db"
	database, err := db.New(path)
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	if err := database.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return New(database, Config{JWTSecret: "test-secret-key-min-32-characters"})
}

func apiKey(t *testing.T, srv *Server, keyType auth.APIKeyType) string {
	t.Helper()
	key, err := srv.authService.GenerateAPIKey(keyType)
	require.NoError(t, err)
	return key
}

func doRequest(t *testing.T, srv *Server, key, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if key != "" {
		req.Header.Set("apikey", key)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupTestServer(t)

	w := doRequest(t, srv, "", "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	srv := setupTestServer(t)

	w := doRequest(t, srv, "", "GET", "/api/v1/reminders", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, srv, "not-a-key", "GET", "/api/v1/reminders", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPIAcceptsBearerKey(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	req := httptest.NewRequest("GET", "/api/v1/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReminderCRUD(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	// Create
	w := doRequest(t, srv, key, "POST", "/api/v1/reminders", map[string]any{
		"title":      "Submit report",
		"note":       "Due EOD",
		"start_date": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created map[string]any
	decodeBody(t, w, &created)
	id := created["id"].(string)
	require.NotEmpty(t, id)
	require.Equal(t, false, created["notified"])

	// List
	w = doRequest(t, srv, key, "GET", "/api/v1/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	decodeBody(t, w, &list)
	require.Len(t, list, 1)

	// Get
	w = doRequest(t, srv, key, "GET", "/api/v1/reminders/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Partial update
	w = doRequest(t, srv, key, "PATCH", "/api/v1/reminders/"+id, map[string]any{
		"note": "Due tomorrow",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var updated map[string]any
	decodeBody(t, w, &updated)
	require.Equal(t, "Due tomorrow", updated["note"])
	require.Equal(t, "Submit report", updated["title"])

	// Delete
	w = doRequest(t, srv, key, "DELETE", "/api/v1/reminders/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, srv, key, "GET", "/api/v1/reminders/"+id, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateReminderValidation(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	w := doRequest(t, srv, key, "POST", "/api/v1/reminders", map[string]any{
		"note": "no title",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, key, "POST", "/api/v1/reminders", map[string]any{
		"title": "no date",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsEndpoints(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	// Defaults: no recipient, log mode.
	w := doRequest(t, srv, key, "GET", "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got settingsResponse
	decodeBody(t, w, &got)
	require.Empty(t, got.NotifyRecipient)
	require.Equal(t, mail.ModeLog, got.MailMode)

	// Update both.
	w = doRequest(t, srv, key, "PATCH", "/api/v1/settings", map[string]any{
		"notify_recipient": "alice@example.test",
		"mail_mode":        mail.ModeCatch,
	})
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &got)
	require.Equal(t, "alice@example.test", got.NotifyRecipient)
	require.Equal(t, mail.ModeCatch, got.MailMode)

	// Invalid mode is rejected.
	w = doRequest(t, srv, key, "PATCH", "/api/v1/settings", map[string]any{
		"mail_mode": "carrier-pigeon",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMailConfigRequiresServiceKey(t *testing.T) {
	srv := setupTestServer(t)
	portalKey := apiKey(t, srv, auth.APIKeyPortal)

	w := doRequest(t, srv, portalKey, "GET", "/api/v1/mail/config", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, srv, portalKey, "PUT", "/api/v1/mail/config", map[string]any{})
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMailConfigLifecycle(t *testing.T) {
	srv := setupTestServer(t)
	serviceKey := apiKey(t, srv, auth.APIKeyService)

	// Nothing configured yet.
	w := doRequest(t, srv, serviceKey, "GET", "/api/v1/mail/config", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Save a configuration; the password comes back masked.
	w = doRequest(t, srv, serviceKey, "PUT", "/api/v1/mail/config", map[string]any{
		"host":     "mail.example.test",
		"port":     587,
		"username": "bot@example.test",
		"password": "hunter2",
		"active":   true,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var saved mailConfigResponse
	decodeBody(t, w, &saved)
	require.NotEmpty(t, saved.ID)
	require.Equal(t, maskedPassword, saved.Password)

	// Resubmitting with the masked password keeps the stored secret.
	w = doRequest(t, srv, serviceKey, "PUT", "/api/v1/mail/config", map[string]any{
		"id":       saved.ID,
		"host":     "mail2.example.test",
		"port":     587,
		"username": "bot@example.test",
		"password": maskedPassword,
		"active":   true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := srv.mailConfigs.Get(saved.ID)
	require.NoError(t, err)
	require.Equal(t, "hunter2", stored.Password)
	require.Equal(t, "mail2.example.test", stored.Host)

	// Delete.
	w = doRequest(t, srv, serviceKey, "DELETE", "/api/v1/mail/config/"+saved.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, srv, serviceKey, "GET", "/api/v1/mail/config", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTestMailNotConfigured(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	w := doRequest(t, srv, key, "POST", "/api/v1/mail/test", nil)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestTestMailCatchMode(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	w := doRequest(t, srv, key, "PATCH", "/api/v1/settings", map[string]any{
		"notify_recipient": "alice@example.test",
		"mail_mode":        mail.ModeCatch,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, key, "POST", "/api/v1/mail/test", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The test message is visible in the mail viewer.
	w = doRequest(t, srv, key, "GET", "/api/v1/mail/emails", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var viewer struct {
		Emails []mail.CaughtEmail `json:"emails"`
		Total  int                `json:"total"`
	}
	decodeBody(t, w, &viewer)
	require.Equal(t, 1, viewer.Total)
	require.Equal(t, "alice@example.test", viewer.Emails[0].To)
	require.Equal(t, "Reminder: Test notification", viewer.Emails[0].Subject)

	// Clearing empties the viewer.
	w = doRequest(t, srv, key, "DELETE", "/api/v1/mail/emails", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, srv, key, "GET", "/api/v1/mail/emails", nil)
	decodeBody(t, w, &viewer)
	require.Equal(t, 0, viewer.Total)
}

func TestStatusEndpoint(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	srv.Hub().Publish(status.Event{ReminderID: "rem-1", State: status.StateSuccess, At: time.Now()})

	w := doRequest(t, srv, key, "GET", "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Events []status.Event  `json:"events"`
		Stats  status.HubStats `json:"stats"`
	}
	decodeBody(t, w, &got)
	require.Len(t, got.Events, 1)
	require.Equal(t, "rem-1", got.Events[0].ReminderID)
	require.Equal(t, 1, got.Stats.Reminders)
}

func TestStatusWebSocketRequiresKey(t *testing.T) {
	srv := setupTestServer(t)

	w := doRequest(t, srv, "", "GET", "/api/v1/status/ws", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecentLogs(t *testing.T) {
	srv := setupTestServer(t)
	key := apiKey(t, srv, auth.APIKeyPortal)

	w := doRequest(t, srv, key, "GET", "/api/v1/logs/recent?lines=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, key, "GET", "/api/v1/logs/recent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Lines []string `json:"lines"`
	}
	decodeBody(t, w, &got)
	require.NotNil(t, got.Lines)
}
