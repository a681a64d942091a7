// Package mailconfig stores SMTP server configurations, tagged by what
// they are used for. The notification subsystem only consumes
// configurations tagged for reminder delivery.
package mailconfig

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/markb/reminderd/internal/db"
)

// Usage tags.
const (
	UsageReminder = "reminder"
)

// ErrNotFound is returned when a configuration id does not exist.
var ErrNotFound = errors.New("mail configuration not found")

// Config is one SMTP server configuration row.
type Config struct {
	ID        string `json:"id"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	UsageType string `json:"usage_type"`
	Active    bool   `json:"active"`
}

// Validate checks the fields needed to open an authenticated session.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("SMTP port %d is out of range", c.Port)
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("SMTP credentials are required")
	}
	return nil
}

// Store persists mail configurations in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// ActiveForUsage returns the single active configuration tagged with the
// given usage type, or nil when none is configured. Absence is not an
// error: the caller treats it as "notifications are switched off".
func (s *Store) ActiveForUsage(usageType string) (*Config, error) {
	row := s.db.QueryRow(`
		SELECT id, host, port, username, password, usage_type, active
		FROM mail_configurations
		WHERE usage_type = ? AND active = 1
		ORDER BY updated_at DESC
		LIMIT 1
	`, usageType)

	cfg, err := scanConfig(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return cfg, err
}

// Get returns a configuration by id.
func (s *Store) Get(id string) (*Config, error) {
	row := s.db.QueryRow(`
		SELECT id, host, port, username, password, usage_type, active
		FROM mail_configurations WHERE id = ?
	`, id)
	cfg, err := scanConfig(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cfg, err
}

// Save inserts or updates a configuration. A new id is generated when
// cfg.ID is empty. Saving an active configuration deactivates any other
// configuration with the same usage tag, so at most one is selectable.
func (s *Store) Save(cfg *Config) (*Config, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UsageType == "" {
		cfg.UsageType = UsageReminder
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if cfg.Active {
		if _, err := tx.Exec(`
			UPDATE mail_configurations SET active = 0, updated_at = datetime('now')
			WHERE usage_type = ? AND id != ?
		`, cfg.UsageType, cfg.ID); err != nil {
			return nil, fmt.Errorf("failed to deactivate previous configuration: %w", err)
		}
	}

	active := 0
	if cfg.Active {
		active = 1
	}
	if _, err := tx.Exec(`
		INSERT INTO mail_configurations (id, host, port, username, password, usage_type, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			username = excluded.username,
			password = excluded.password,
			usage_type = excluded.usage_type,
			active = excluded.active,
			updated_at = datetime('now')
	`, cfg.ID, cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.UsageType, active); err != nil {
		return nil, fmt.Errorf("failed to save mail configuration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit mail configuration: %w", err)
	}
	return s.Get(cfg.ID)
}

// Delete removes a configuration.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM mail_configurations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete mail configuration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanConfig(scan func(dest ...any) error) (*Config, error) {
	var cfg Config
	var active int
	if err := scan(&cfg.ID, &cfg.Host, &cfg.Port, &cfg.Username, &cfg.Password, &cfg.UsageType, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan mail configuration: %w", err)
	}
	cfg.Active = active != 0
	return &cfg, nil
}
