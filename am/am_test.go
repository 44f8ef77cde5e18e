package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance without user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "serveradmin.db", cfg.Database.Path)
	assert.Equal(t, 25, cfg.Query.DefaultLimit)
	assert.Equal(t, 10000, cfg.Query.MaxLimit)
	assert.Equal(t, 500, cfg.Query.PageSize)
	assert.Equal(t, 1000, cfg.Query.FreeIPLimit)
	assert.Equal(t, []string{"hostname", "intern_ip", "servertype", "state"}, cfg.Query.ShownAttributes)
	assert.Empty(t, cfg.Commit.ReadonlyUsers)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "am.toml")
	content := `
[database]
path = "/var/lib/serveradmin/inventory.db"

[query]
default_limit = 50
shown_attributes = ["hostname", "os"]

[commit]
readonly_users = ["monitoring"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), DefaultFilePermissions))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/serveradmin/inventory.db", cfg.Database.Path)
	assert.Equal(t, 50, cfg.Query.DefaultLimit)
	assert.Equal(t, 10000, cfg.Query.MaxLimit, "unset keys keep defaults")
	assert.Equal(t, []string{"hostname", "os"}, cfg.Query.ShownAttributes)
	assert.True(t, cfg.IsReadonlyUser("monitoring"))
	assert.False(t, cfg.IsReadonlyUser("alice"))
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte("[query]\nmax_limit = 10\ndefault_limit = 20\n"), DefaultFilePermissions))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds query.max_limit")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SERVERADMIN_DATABASE_PATH", "/tmp/env.db")
	Reset()
	t.Cleanup(Reset)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "x.db"},
			Query:    QueryConfig{DefaultLimit: 25, MaxLimit: 100, PageSize: 10, FreeIPLimit: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty path", func(c *Config) { c.Database.Path = "" }, true},
		{"zero default limit", func(c *Config) { c.Query.DefaultLimit = 0 }, true},
		{"negative max limit", func(c *Config) { c.Query.MaxLimit = -1 }, true},
		{"zero page size", func(c *Config) { c.Query.PageSize = 0 }, true},
		{"zero free ip limit", func(c *Config) { c.Query.FreeIPLimit = 0 }, true},
		{"empty readonly user", func(c *Config) { c.Commit.ReadonlyUsers = []string{""} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "am.toml"), []byte(""), DefaultFilePermissions))
	sub := filepath.Join(dir, "nested", "deeper")
	require.NoError(t, os.MkdirAll(sub, DefaultDirPermissions))
	t.Chdir(sub)

	sources := Sources()
	require.NotEmpty(t, sources)
	last := sources[len(sources)-1]
	assert.Equal(t, "project", last.Kind)
	assert.True(t, last.Exists)
	assert.Equal(t, "system", sources[0].Kind)
}
