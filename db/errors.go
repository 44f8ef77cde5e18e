package db

import (
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/teranos/serveradmin/errors"
)

// ErrDatabaseClosed is returned when operations are attempted on a closed database.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is closed.
// The string fallback covers errors returned directly by database/sql.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// IsConstraintError reports whether err is a storage constraint failure:
// unique index, CHECK, foreign key, or a RAISE(ABORT) from a trigger.
func IsConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// ConstraintName extracts a short name for the failed constraint, e.g.
// "server.hostname" for a unique failure or the message given to RAISE.
func ConstraintName(err error) string {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return ""
	}
	msg := sqliteErr.Error()
	for _, prefix := range []string{"UNIQUE constraint failed: ", "CHECK constraint failed: "} {
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	if strings.HasPrefix(msg, "FOREIGN KEY constraint failed") {
		return "foreign_key"
	}
	return msg
}
