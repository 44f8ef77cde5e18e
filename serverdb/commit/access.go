package commit

import (
	"context"
	"slices"

	"github.com/teranos/serveradmin/errors"
)

// AccessControl decides whether user may apply batch.
type AccessControl interface {
	Authorize(ctx context.Context, user string, batch Commit) error
}

// ReadonlyUsers denies every commit of the listed users.
type ReadonlyUsers []string

func (r ReadonlyUsers) Authorize(_ context.Context, user string, _ Commit) error {
	if slices.Contains(r, user) {
		return errors.WithHint(
			errors.Wrapf(errors.ErrPermissionDenied, "user %q may not commit", user),
			"the user is listed in commit.readonly_users")
	}
	return nil
}
