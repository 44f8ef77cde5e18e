package am

import "github.com/teranos/serveradmin/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path cannot be empty")
	}

	// Limits: zero would make every listing empty
	if c.Query.DefaultLimit <= 0 {
		return errors.Newf("query.default_limit must be > 0, got %d", c.Query.DefaultLimit)
	}
	if c.Query.MaxLimit <= 0 {
		return errors.Newf("query.max_limit must be > 0, got %d", c.Query.MaxLimit)
	}
	if c.Query.DefaultLimit > c.Query.MaxLimit {
		return errors.Newf("query.default_limit (%d) exceeds query.max_limit (%d)", c.Query.DefaultLimit, c.Query.MaxLimit)
	}
	if c.Query.PageSize <= 0 {
		return errors.Newf("query.page_size must be > 0, got %d", c.Query.PageSize)
	}
	if c.Query.FreeIPLimit <= 0 {
		return errors.Newf("query.free_ip_limit must be > 0, got %d", c.Query.FreeIPLimit)
	}

	for _, user := range c.Commit.ReadonlyUsers {
		if user == "" {
			return errors.New("commit.readonly_users cannot contain an empty name")
		}
	}

	return nil
}

// IsReadonlyUser reports whether user is listed in commit.readonly_users.
func (c *Config) IsReadonlyUser(user string) bool {
	for _, u := range c.Commit.ReadonlyUsers {
		if u == user {
			return true
		}
	}
	return false
}
