// Package commands implements the serveradmin CLI commands.
package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/serveradmin/am"
	"github.com/teranos/serveradmin/db"
	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/logger"
	"github.com/teranos/serveradmin/serverdb/commit"
	"github.com/teranos/serveradmin/serverdb/query"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
	"github.com/teranos/serveradmin/sym"
)

// env is what a command needs to reach the inventory.
type env struct {
	cfg       *am.Config
	db        *sql.DB
	schema    *schema.Schema
	executor  *query.Executor
	committer *commit.Committer

	// verbosity is the -v count; diagnostics selected by it go to diag.
	verbosity int
	diag      io.Writer
}

// openEnv loads the configuration, opens and migrates the database, and
// loads the schema it holds.
func openEnv(cmd *cobra.Command) (*env, error) {
	ctx := cmd.Context()
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	database, err := db.OpenWithMigrations(cfg.Database.Path, logger.ComponentLogger("db"))
	if err != nil {
		return nil, err
	}
	e, err := newEnv(ctx, cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	e.verbosity, _ = cmd.Flags().GetCount("verbose")
	e.diag = cmd.ErrOrStderr()
	if e.shows(logger.OutputConfig) {
		fmt.Fprintf(e.diag, "%s database %s, verbosity %s\n", sym.AM, cfg.Database.Path, logger.LevelName(e.verbosity))
	}
	return e, nil
}

// newEnv wires the engine over an open database.
func newEnv(ctx context.Context, cfg *am.Config, database *sql.DB) (*env, error) {
	sch, err := storage.LoadSchema(ctx, database)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		db:     database,
		schema: sch,
		executor: query.NewExecutor(database, sch, query.Config{
			PageSize: cfg.Query.PageSize,
			MaxLimit: cfg.Query.MaxLimit,
		}, logger.ComponentLogger("query")),
		committer: commit.NewCommitter(database, sch, commit.Options{
			AccessControl: commit.ReadonlyUsers(cfg.Commit.ReadonlyUsers),
			Logger:        logger.ComponentLogger("commit"),
		}),
	}, nil
}

func (e *env) shows(category logger.OutputCategory) bool {
	return e.diag != nil && logger.ShouldOutput(e.verbosity, category)
}

// explain writes the query as understood and, at trace verbosity, the SQL
// it compiles to.
func (e *env) explain(q *query.Query) {
	if e.shows(logger.OutputQuery) {
		fmt.Fprintf(e.diag, "%s %s\n", sym.Query, q)
	}
	if e.shows(logger.OutputSQL) {
		stmt, args := q.SQL()
		fmt.Fprintf(e.diag, "%s\n  args: %v\n", stmt, args)
	}
}

// timed writes how long an operation took since start.
func (e *env) timed(what string, start time.Time) {
	if e.shows(logger.OutputTiming) {
		fmt.Fprintf(e.diag, "%s took %s\n", what, time.Since(start).Round(time.Microsecond))
	}
}

func (e *env) Close() error {
	return e.db.Close()
}
