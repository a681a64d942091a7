// internal/db/migrations.go
package db

import "fmt"

const reminderSchema = `
CREATE TABLE IF NOT EXISTS reminders (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    note        TEXT,
    start_date  TEXT NOT NULL,
    notified    INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(notified, start_date);
`

const mailConfigSchema = `
CREATE TABLE IF NOT EXISTS mail_configurations (
    id          TEXT PRIMARY KEY,
    host        TEXT NOT NULL,
    port        INTEGER NOT NULL DEFAULT 587,
    username    TEXT NOT NULL,
    password    TEXT NOT NULL,
    usage_type  TEXT NOT NULL,
    active      INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_mail_configurations_usage ON mail_configurations(usage_type, active);
`

const sentEmailSchema = `
CREATE TABLE IF NOT EXISTS sent_emails (
    id           TEXT PRIMARY KEY,
    to_email     TEXT NOT NULL,
    from_email   TEXT NOT NULL,
    subject      TEXT NOT NULL,
    body_html    TEXT,
    body_text    TEXT,
    reminder_id  TEXT,
    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_emails_created_at ON sent_emails(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sent_emails_reminder ON sent_emails(reminder_id);
`

const settingsSchema = `
CREATE TABLE IF NOT EXISTS settings (
    key    TEXT PRIMARY KEY,
    value  TEXT NOT NULL
);
`

// RunMigrations applies the schema. Every statement is idempotent, so
// running against an up-to-date database is a no-op.
func (db *DB) RunMigrations() error {
	for _, schema := range []string{reminderSchema, mailConfigSchema, sentEmailSchema, settingsSchema} {
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
