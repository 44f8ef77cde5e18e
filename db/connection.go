package db

import (
	"database/sql"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/sym"
)

// DriverName is the database/sql driver registered by this package. It is
// the stock sqlite3 driver plus a connect hook that applies the pragmas
// below and registers the regexp() SQL function on every pooled connection.
const DriverName = "sqlite3_serveradmin"

// SQLiteBusyTimeoutMS is how long a connection waits for a competing writer.
const SQLiteBusyTimeoutMS = 5000

var connectionPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, pragma := range connectionPragmas {
				if _, err := conn.Exec(pragma, nil); err != nil {
					return errors.Wrapf(err, "apply %q", pragma)
				}
			}
			return conn.RegisterFunc("regexp", sqlRegexp, true)
		},
	})
}

// compiled caches patterns across rows and connections; filter patterns are
// few and long-lived.
var compiled sync.Map

// sqlRegexp backs the REGEXP operator: "value REGEXP pattern" calls
// regexp(pattern, value). NULL values never match.
func sqlRegexp(pattern string, value interface{}) (bool, error) {
	var s string
	switch v := value.(type) {
	case nil:
		return false, nil
	case string:
		s = v
	case []byte:
		// the driver hands NULL over as a nil byte slice
		if v == nil {
			return false, nil
		}
		s = string(v)
	default:
		return false, nil
	}

	re, ok := compiled.Load(pattern)
	if !ok {
		c, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		re, _ = compiled.LoadOrStore(pattern, c)
	}
	return re.(*regexp.Regexp).MatchString(s), nil
}

// Open opens a SQLite database at the specified path.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path, "symbol", sym.DB)
	}
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// sql.Open is lazy; connect once so path and pragma errors surface here
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to connect to database %s", path)
	}

	if logger != nil {
		logger.Infow("Database opened",
			"path", path,
			"symbol", sym.DB,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}

	return db, nil
}

// OpenWithMigrations opens the database and applies pending migrations.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to migrate %s", path)
	}
	return db, nil
}
