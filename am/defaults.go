package am

import (
	"github.com/spf13/viper"
)

// Default values. Defaults for the shown attributes follow the web shell:
// the special attributes except object_id, plus state.
const (
	DefaultDatabasePath = "serveradmin.db"
	DefaultQueryLimit   = 25
	DefaultMaxLimit     = 10000
	DefaultPageSize     = 500
	DefaultFreeIPLimit  = 1000
)

// DefaultShownAttributes is the CLI projection when none is requested.
var DefaultShownAttributes = []string{"hostname", "intern_ip", "servertype", "state"}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("query.default_limit", DefaultQueryLimit)
	v.SetDefault("query.max_limit", DefaultMaxLimit)
	v.SetDefault("query.page_size", DefaultPageSize)
	v.SetDefault("query.shown_attributes", DefaultShownAttributes)
	v.SetDefault("query.free_ip_limit", DefaultFreeIPLimit)

	v.SetDefault("commit.readonly_users", []string{})
	v.SetDefault("commit.default_user", "")

	v.SetDefault("log.json", false)
}
