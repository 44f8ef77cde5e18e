package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/teranos/serveradmin/display"
	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/query"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/sym"
)

// QueryCmd represents the query command
var QueryCmd = &cobra.Command{
	Use:   "query [TERM...]",
	Short: sym.Short("query", "Select objects with filters"),
	Long: sym.Query + ` query — Select objects with filters

Terms are attribute=value pairs combined with AND. Values may be
function calls such as Any(a b), Not(x), GreaterThan(4), Regexp(^web),
Contains(10.0.0.1) or Empty().

Examples:
  serveradmin query servertype=vm
  serveradmin query 'os=Any(bookworm bullseye)' num_cpu=GreaterThan(4)
  serveradmin query hypervisor=hv1 --restrict "hostname memory" --order-by memory
  serveradmin query servertype=vm --offset 25 --limit 25 --format yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return runQuery(cmd.Context(), e, cmd.OutOrStdout(), args, queryFlags)
	},
}

// ExportCmd represents the export command
var ExportCmd = &cobra.Command{
	Use:   "export [TERM...]",
	Short: sym.Short("query", "Print the hostnames of matching objects"),
	Long: `Print the hostnames of every matching object on one line, separated by
spaces, for use in shell loops:

  for h in $(serveradmin export servertype=vm environment=testing); do ssh $h uptime; done`,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return runExport(cmd.Context(), e, cmd.OutOrStdout(), args)
	},
}

type queryOptions struct {
	restrict string
	orderBy  string
	offset   int
	limit    int
	format   string
}

var queryFlags queryOptions

func init() {
	QueryCmd.Flags().StringVar(&queryFlags.restrict, "restrict", "", "Attributes to load, space separated (shell quoting applies)")
	QueryCmd.Flags().StringVar(&queryFlags.orderBy, "order-by", "", "Attributes to sort by, space separated, first key primary")
	QueryCmd.Flags().IntVar(&queryFlags.offset, "offset", 0, "Number of objects to skip")
	QueryCmd.Flags().IntVar(&queryFlags.limit, "limit", 0, "Maximum number of objects (default query.default_limit)")
	QueryCmd.Flags().StringVarP(&queryFlags.format, "format", "f", display.FormatTable, "Output format: table, json, yaml")
}

// splitAttributes splits a flag value such as "hostname 'intern_ip'".
func splitAttributes(flag, value string) ([]string, error) {
	words, err := shellquote.Split(value)
	if err != nil {
		return nil, errors.NewInvalidRequestError("--%s: %s", flag, err)
	}
	return words, nil
}

func runQuery(ctx context.Context, e *env, w io.Writer, args []string, f queryOptions) error {
	restrict, err := splitAttributes("restrict", f.restrict)
	if err != nil {
		return err
	}
	orderBy, err := splitAttributes("order-by", f.orderBy)
	if err != nil {
		return err
	}
	limit := f.limit
	if limit <= 0 {
		limit = e.cfg.Query.DefaultLimit
	}

	opts := []query.Option{query.Slice(f.offset, limit)}
	if len(restrict) > 0 {
		opts = append(opts, query.Restrict(restrict...))
	}
	if len(orderBy) > 0 {
		opts = append(opts, query.OrderBy(orderBy...))
	}
	q, err := e.executor.ParseQuery(strings.Join(args, " "), opts...)
	if err != nil {
		return err
	}
	e.explain(q)
	start := time.Now()
	objs, err := q.List(ctx)
	if err != nil {
		return err
	}
	e.timed(fmt.Sprintf("query of %d objects", len(objs)), start)

	columns := restrict
	if len(columns) == 0 {
		columns = e.cfg.Query.ShownAttributes
	}
	return display.WriteObjects(w, f.format, columns, objs)
}

func runExport(ctx context.Context, e *env, w io.Writer, args []string) error {
	q, err := e.executor.ParseQuery(strings.Join(args, " "), query.Restrict(schema.AttrHostname))
	if err != nil {
		return err
	}
	e.explain(q)
	var names []string
	for obj, err := range q.All(ctx) {
		if err != nil {
			return err
		}
		names = append(names, obj.Hostname())
	}
	_, err = fmt.Fprintln(w, strings.Join(names, " "))
	return err
}

// hostnames lists the hostnames of objs in order.
func hostnames(objs []*object.Server) []string {
	out := make([]string, len(objs))
	for i, obj := range objs {
		out[i] = obj.Hostname()
	}
	return out
}
