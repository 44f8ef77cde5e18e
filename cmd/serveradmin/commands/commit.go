package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/commit"
	"github.com/teranos/serveradmin/sym"
)

// CommitCmd represents the commit command
var CommitCmd = &cobra.Command{
	Use:   "commit",
	Short: sym.Short("commit", "Apply a batch of creations, changes and deletions"),
	Long: sym.Commit + ` commit — Apply a batch of creations, changes and deletions

The batch is a YAML or JSON file. It is applied completely or not at all:

  created:
    - hostname: web3
      servertype: vm
      intern_ip: 10.0.1.23
      hypervisor: hv1
  changed:
    - object_id: 42
      os: {action: update, old: bullseye, new: bookworm}
      tags: {action: multi, add: [db], remove: [web]}
  deleted: [17]

Examples:
  serveradmin commit -f batch.yaml --user alice
  cat batch.json | serveradmin commit -f - --user alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readBatch(cmd.InOrStdin(), commitFile)
		if err != nil {
			return err
		}
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		user := commitUser
		if user == "" {
			user = e.cfg.Commit.DefaultUser
		}
		return runCommit(cmd.Context(), e, cmd.OutOrStdout(), user, data)
	},
}

var (
	commitFile string
	commitUser string
)

func init() {
	CommitCmd.Flags().StringVarP(&commitFile, "file", "f", "", "Batch file, - for stdin")
	CommitCmd.Flags().StringVarP(&commitUser, "user", "u", "", "User the commit is applied for (default commit.default_user)")
	_ = CommitCmd.MarkFlagRequired("file")
}

func readBatch(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "failed to read batch from stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read batch %s", path)
	}
	return data, nil
}

func runCommit(ctx context.Context, e *env, w io.Writer, user string, data []byte) error {
	batch, err := commit.DecodeBatch(data)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := e.committer.Commit(ctx, user, batch)
	if err != nil {
		return err
	}
	e.timed("commit", start)
	if res.CommitID == "" {
		fmt.Fprintln(w, "Nothing to commit")
		return nil
	}

	fmt.Fprintf(w, "%s Commit %s\n", sym.Commit, res.CommitID)
	for i, name := range hostnames(res.Created) {
		fmt.Fprintf(w, "  created %d %s\n", res.Created[i].ObjectID(), name)
	}
	for _, id := range res.Changed {
		fmt.Fprintf(w, "  changed %d\n", id)
	}
	for _, id := range res.Deleted {
		fmt.Fprintf(w, "  deleted %d\n", id)
	}
	return nil
}
