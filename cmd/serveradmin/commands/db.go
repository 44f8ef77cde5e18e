package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/serveradmin/am"
	"github.com/teranos/serveradmin/db"
	"github.com/teranos/serveradmin/display"
	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/logger"
	"github.com/teranos/serveradmin/serverdb/storage"
	"github.com/teranos/serveradmin/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.Short("db", "Manage the serveradmin database"),
	Long: sym.DB + ` db — Manage the serveradmin database

Examples:
  serveradmin db migrate                  # Apply pending migrations
  serveradmin db stats                    # Objects per servertype and commit count
  serveradmin db load-schema -f schema.yaml`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()
		if err := db.Migrate(database, logger.ComponentLogger("db")); err != nil {
			return err
		}
		versions, err := db.AppliedVersions(database)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Applied migrations: %v\n", sym.DB, versions)
		return nil
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show objects per servertype and the number of commits",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return runDbStats(cmd.Context(), e, cmd.OutOrStdout())
	},
}

var dbLoadSchemaCmd = &cobra.Command{
	Use:   "load-schema",
	Short: "Insert servertypes, attributes and bindings from a YAML file",
	Long: `Insert schema definitions from a YAML file:

  servertypes:
    - {id: vm, ip_addr_type: host}
  attributes:
    - {id: os, type: string}
  bindings:
    - {servertype: vm, attribute: os, required: true}

The file is validated as a whole and inserted in one transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readBatch(cmd.InOrStdin(), schemaFile)
		if err != nil {
			return err
		}
		database, err := openDatabase()
		if err != nil {
			return err
		}
		if err := db.Migrate(database, logger.ComponentLogger("db")); err != nil {
			database.Close()
			return err
		}
		defer database.Close()
		return runLoadSchema(cmd.Context(), database, cmd.OutOrStdout(), data)
	},
}

var schemaFile string

func init() {
	dbLoadSchemaCmd.Flags().StringVarP(&schemaFile, "file", "f", "", "Schema file, - for stdin")
	_ = dbLoadSchemaCmd.MarkFlagRequired("file")

	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbLoadSchemaCmd)
}

// openDatabase opens the configured database without migrating it.
func openDatabase() (*sql.DB, error) {
	path, err := am.GetDatabasePath()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	return db.Open(path, logger.ComponentLogger("db"))
}

func runDbStats(ctx context.Context, e *env, w io.Writer) error {
	counts, commits, err := storage.Stats(ctx, e.db)
	if err != nil {
		return err
	}
	data := pterm.TableData{{"servertype", "objects"}}
	total := 0
	for _, c := range counts {
		data = append(data, []string{c.Servertype, fmt.Sprint(c.Objects)})
		total += c.Objects
	}
	fmt.Fprintf(w, "%s Database Statistics\n", sym.DB)
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Fprintf(w, "Database Path: %s\n", e.cfg.Database.Path)
	fmt.Fprintf(w, "Objects:       %d\n", total)
	fmt.Fprintf(w, "Commits:       %d\n\n", commits)
	return display.WriteTable(w, data)
}

func runLoadSchema(ctx context.Context, database *sql.DB, w io.Writer, data []byte) error {
	var defs storage.Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return errors.Wrap(errors.ErrInvalidRequest, "malformed schema file: "+err.Error())
	}
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()
	if err := storage.InsertSchema(ctx, tx, defs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit schema")
	}
	fmt.Fprintf(w, "%s Loaded %d servertypes, %d attributes, %d bindings\n",
		sym.DB, len(defs.Servertypes), len(defs.Attributes), len(defs.Bindings))
	return nil
}
