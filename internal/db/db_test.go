// internal/db/db_test.go
package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	database, err := New(path)
	require.NoError(t, err)
	defer database.Close()

	var mode string
	err = database.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	require.Equal(t, "wal", mode)
}

func TestRunMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	database, err := New(path)
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, database.RunMigrations())
	// Second run must be a no-op.
	require.NoError(t, database.RunMigrations())

	for _, table := range []string{"reminders", "mail_configurations", "sent_emails", "settings"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}
