package am

// Config represents the serveradmin configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Query    QueryConfig    `mapstructure:"query" toml:"query" json:"query" yaml:"query"`
	Commit   CommitConfig   `mapstructure:"commit" toml:"commit" json:"commit" yaml:"commit"`
	Log      LogConfig      `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// QueryConfig configures query execution and CLI result paging
type QueryConfig struct {
	DefaultLimit    int      `mapstructure:"default_limit" toml:"default_limit" json:"default_limit" yaml:"default_limit"`             // CLI page size when --limit is omitted
	MaxLimit        int      `mapstructure:"max_limit" toml:"max_limit" json:"max_limit" yaml:"max_limit"`                             // hard cap on any slice
	PageSize        int      `mapstructure:"page_size" toml:"page_size" json:"page_size" yaml:"page_size"`                             // objects per attribute fetch round
	ShownAttributes []string `mapstructure:"shown_attributes" toml:"shown_attributes" json:"shown_attributes" yaml:"shown_attributes"` // CLI projection when --restrict is omitted
	FreeIPLimit     int      `mapstructure:"free_ip_limit" toml:"free_ip_limit" json:"free_ip_limit" yaml:"free_ip_limit"`             // cap for free-ip listings
}

// CommitConfig configures the commit pipeline
type CommitConfig struct {
	ReadonlyUsers []string `mapstructure:"readonly_users" toml:"readonly_users" json:"readonly_users" yaml:"readonly_users"`
	DefaultUser   string   `mapstructure:"default_user" toml:"default_user" json:"default_user" yaml:"default_user"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
