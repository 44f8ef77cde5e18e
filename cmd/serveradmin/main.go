package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/serveradmin/am"
	"github.com/teranos/serveradmin/cmd/serveradmin/commands"
	"github.com/teranos/serveradmin/display"
	"github.com/teranos/serveradmin/logger"
)

var rootCmd = &cobra.Command{
	Use:   "serveradmin",
	Short: "serveradmin - server inventory database",
	Long: `serveradmin - server inventory database.

Objects are typed by servertype and carry schema-defined attributes.
Select them with attribute filters and change them in validated,
all-or-nothing commits.

Available commands:
  query    - Select objects with filters
  export   - Print the hostnames of matching objects
  commit   - Apply a batch of creations, changes and deletions
  new      - Show a new object of a servertype with its defaults
  free-ip  - List free addresses inside a network
  db       - Manage the database (migrate, stats, load-schema)
  am       - Show configuration ("I am")

Examples:
  serveradmin query servertype=vm environment=production
  serveradmin query 'hostname=Regexp(^web)' --restrict "hostname intern_ip" --format json
  serveradmin export 'route_network=net-a-sub'
  serveradmin commit -f batch.yaml --user alice
  serveradmin free-ip hostname=net-a-sub --limit 5`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// output of these stays free of log lines
		if cmd.Name() == "show" || cmd.Name() == "version" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLog := false
		if cfg, err := am.Load(); err == nil {
			jsonLog = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLog, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	rootCmd.AddCommand(commands.QueryCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.CommitCmd)
	rootCmd.AddCommand(commands.NewCmd)
	rootCmd.AddCommand(commands.FreeIPCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		display.PrintError(os.Stderr, err)
		os.Exit(display.ExitCode(err))
	}
}
