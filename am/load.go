package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/serveradmin/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// SERVERADMIN_DATABASE_PATH overrides database.path.
const EnvPrefix = "SERVERADMIN"

var globalConfig *Config
var viperInstance *viper.Viper

// Load reads the serveradmin configuration using Viper
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Defaults only; environment is not bound for an explicit file
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	// Precedence (lowest to highest): system < user < project < env vars
	for _, source := range Sources() {
		if !source.Exists {
			continue
		}
		fileViper := viper.New()
		fileViper.SetConfigFile(source.Path)
		fileViper.SetConfigType("toml")
		if err := fileViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(fileViper.AllSettings()); err != nil {
				continue
			}
		}
	}

	viperInstance = v
	return v
}

// Source is one configuration file location in the cascade.
type Source struct {
	Kind   string // system, user or project
	Path   string
	Exists bool
}

// Sources lists the configuration files in precedence order, lowest first.
func Sources() []Source {
	var paths []Source
	paths = append(paths, Source{Kind: "system", Path: "/etc/serveradmin/config.toml"})
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, Source{Kind: "user", Path: filepath.Join(homeDir, ".serveradmin", "am.toml")})
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, Source{Kind: "project", Path: project})
	}
	for i := range paths {
		_, err := os.Stat(paths[i].Path)
		paths[i].Exists = err == nil
	}
	return paths
}

// findProjectConfig searches for am.toml by walking up the directory tree
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		amPath := filepath.Join(dir, "am.toml")
		if _, err := os.Stat(amPath); err == nil {
			return amPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// GetDatabasePath returns the configured database path
func GetDatabasePath() (string, error) {
	config, err := Load()
	if err != nil {
		return "", err
	}
	return config.Database.Path, nil
}
