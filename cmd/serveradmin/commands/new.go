package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/serveradmin/display"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/sym"
)

// NewCmd represents the new command
var NewCmd = &cobra.Command{
	Use:   "new SERVERTYPE",
	Short: sym.Short("new", "Show a new object of a servertype with its defaults"),
	Long: sym.New + ` new — Show a new object of a servertype with its defaults

Prints the attributes a created object of the servertype starts with. The
YAML form is a starting point for the created section of a commit batch.

Examples:
  serveradmin new vm
  serveradmin new vm --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return runNew(cmd.Context(), e, cmd.OutOrStdout(), args[0], newFormat)
	},
}

var newFormat string

func init() {
	NewCmd.Flags().StringVar(&newFormat, "format", display.FormatYAML, "Output format: table, json, yaml")
}

func runNew(_ context.Context, e *env, w io.Writer, servertype, format string) error {
	obj, err := e.executor.NewObject(servertype)
	if err != nil {
		return err
	}
	return display.WriteObjects(w, format, obj.Keys(), []*object.Server{obj})
}
