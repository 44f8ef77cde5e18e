package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/serveradmin/sym"
)

// FreeIPCmd represents the free-ip command
var FreeIPCmd = &cobra.Command{
	Use:   "free-ip TERM...",
	Short: sym.Short("free-ip", "List free addresses inside a network"),
	Long: sym.FreeIP + ` free-ip — List free addresses inside a network

The terms select network objects; the narrowest of their intern_ip
networks is searched. An address is free when no host, loadbalancer or ip
attribute uses it.

Examples:
  serveradmin free-ip hostname=net-a-sub
  serveradmin free-ip servertype=route_network 'intern_ip=Contains(10.0.1.0)' --limit 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return runFreeIP(cmd.Context(), e, cmd.OutOrStdout(), args, freeIPLimit)
	},
}

var freeIPLimit int

func init() {
	FreeIPCmd.Flags().IntVarP(&freeIPLimit, "limit", "n", 0, "Number of addresses (default and cap: query.free_ip_limit)")
}

func runFreeIP(ctx context.Context, e *env, w io.Writer, args []string, limit int) error {
	if limit <= 0 || limit > e.cfg.Query.FreeIPLimit {
		limit = e.cfg.Query.FreeIPLimit
	}
	q, err := e.executor.ParseQuery(strings.Join(args, " "))
	if err != nil {
		return err
	}
	e.explain(q)
	n := 0
	for addr, err := range q.FreeIPAddrs(ctx) {
		if err != nil {
			return err
		}
		fmt.Fprintln(w, addr)
		if n++; n == limit {
			break
		}
	}
	return nil
}
