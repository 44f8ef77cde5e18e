package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/serveradmin/errors"
)

func TestOpen(t *testing.T) {
	t.Run("applies pragmas on every connection", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		// Hold two pooled connections at once
		conn1, err := db.Conn(t.Context())
		require.NoError(t, err)
		defer conn1.Close()
		conn2, err := db.Conn(t.Context())
		require.NoError(t, err)
		defer conn2.Close()

		var journalMode string
		require.NoError(t, conn2.QueryRowContext(t.Context(), "PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode)

		var foreignKeys int
		require.NoError(t, conn2.QueryRowContext(t.Context(), "PRAGMA foreign_keys").Scan(&foreignKeys))
		assert.Equal(t, 1, foreignKeys)

		var busyTimeout int
		require.NoError(t, conn1.QueryRowContext(t.Context(), "PRAGMA busy_timeout").Scan(&busyTimeout))
		assert.Equal(t, SQLiteBusyTimeoutMS, busyTimeout)
	})

	t.Run("returns error for invalid path", func(t *testing.T) {
		db, err := Open("/invalid/nonexistent/path/db.sqlite", nil)
		require.Error(t, err)
		assert.Nil(t, db)
		assert.NotNil(t, errors.GetStack(err), "error should have stack trace from errors.Wrap")
	})

	t.Run("creates database file if it doesn't exist", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "new.db")
		_, err := os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))

		db, err := Open(dbPath, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		defer db.Close()

		_, err = os.Stat(dbPath)
		assert.NoError(t, err)
	})

	t.Run("closed database is detected", func(t *testing.T) {
		db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
		require.NoError(t, err)
		db.Close()

		_, err = db.Exec("SELECT 1")
		require.Error(t, err)
		assert.True(t, IsDatabaseClosed(err))
	})
}

func TestRegexpFunction(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	tests := []struct {
		value   any
		pattern string
		want    bool
	}{
		{"web01.example", `^web\d+\.`, true},
		{"db01.example", `^web\d+\.`, false},
		{nil, `.*`, false},
	}
	for _, tt := range tests {
		var got bool
		require.NoError(t, db.QueryRow("SELECT ? REGEXP ?", tt.value, tt.pattern).Scan(&got))
		assert.Equal(t, tt.want, got, "%v REGEXP %s", tt.value, tt.pattern)
	}

	var ignored bool
	err = db.QueryRow("SELECT 'x' REGEXP '('").Scan(&ignored)
	assert.Error(t, err, "invalid pattern must fail the statement")
}
