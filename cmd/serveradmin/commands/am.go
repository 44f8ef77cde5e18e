package commands

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/serveradmin/am"
	"github.com/teranos/serveradmin/display"
	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.Short("am", "Show serveradmin configuration"),
	Long: sym.AM + ` am — Show serveradmin configuration ("I am")

Configuration sources (in order of precedence):
1. Environment variables (SERVERADMIN_* prefix, e.g. SERVERADMIN_DATABASE_PATH)
2. Project config (./am.toml, searched up the directory tree)
3. User config (~/.serveradmin/am.toml)
4. System config (/etc/serveradmin/config.toml)
5. Default values

Examples:
  serveradmin am show                    # Show current configuration
  serveradmin am show --format json      # Show configuration in JSON format
  serveradmin am get query.default_limit # Get a specific value
  serveradmin am where                   # Show which files are read`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := am.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
	},
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, query.max_limit)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := am.GetViper()
		if !v.IsSet(args[0]) {
			return errors.NewNotFoundError("configuration key %q not found", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v.Get(args[0]))
		return nil
	},
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
		for _, s := range am.Sources() {
			mark := "missing"
			if s.Exists {
				mark = "loaded"
			}
			fmt.Fprintf(w, "  [%-7s] %s (%s)\n", s.Kind, s.Path, mark)
		}
		fmt.Fprintf(w, "  [env    ] %s_* environment variables\n", am.EnvPrefix)
		return nil
	},
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amWhereCmd)
}

func writeConfig(w io.Writer, cfg *am.Config, format string) error {
	switch format {
	case "json":
		return display.WriteJSON(w, cfg)

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Fprintf(w, "# serveradmin configuration\n%s", data)

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Fprintf(w, "# serveradmin configuration\n%s", data)

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", format)
	}
	return nil
}
