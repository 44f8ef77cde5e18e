package query

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/logger"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/parser"
	"github.com/teranos/serveradmin/serverdb/storage"
)

// Query is a compiled query. It holds no store state: every iteration
// reads afresh.
type Query struct {
	executor *Executor
	compiled *compiled
	options  options
}

// String returns the query as understood, with operands coerced to the
// attribute types.
func (q *Query) String() string {
	return parser.FormatQuery(q.compiled.filters)
}

// SQL returns the statement that selects the ids of the matching objects
// and its arguments.
func (q *Query) SQL() (string, []any) {
	return q.idsSQL()
}

func (q *Query) idsSQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT " + objectAlias + ".server_id FROM server " + objectAlias)
	b.WriteString(" WHERE " + q.compiled.where)
	b.WriteString(" ORDER BY " + strings.Join(q.compiled.order, ", "))
	args := append(append([]any{}, q.compiled.whereArgs...), q.compiled.orderArgs...)
	if q.options.limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.options.limit, q.options.offset)
	} else if q.options.offset > 0 {
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, q.options.offset)
	}
	return b.String(), args
}

func (q *Query) ids(ctx context.Context, tx storage.Queryer) ([]int64, error) {
	stmt, args := q.idsSQL()
	rows, err := tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.WithDetail(errors.Wrap(err, "failed to execute query"), q.String())
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan object id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "failed to read query results")
}

// All streams the matching objects. Each range runs in its own read
// transaction, so ranging again sees the current store.
func (q *Query) All(ctx context.Context) iter.Seq2[*object.Server, error] {
	e := q.executor
	return func(yield func(*object.Server, error) bool) {
		start := time.Now()
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			yield(nil, errors.Wrap(err, "failed to begin read transaction"))
			return
		}
		defer tx.Rollback()

		ids, err := q.ids(ctx, tx)
		if err != nil {
			yield(nil, err)
			return
		}
		if e.log != nil {
			e.log.Debugw("query matched",
				logger.FieldQuery, q.String(),
				logger.FieldCount, len(ids),
				logger.FieldDurationMS, time.Since(start).Milliseconds(),
			)
		}

		for len(ids) > 0 {
			n := min(len(ids), e.config.PageSize)
			page, err := storage.LoadServers(ctx, tx, e.schema, ids[:n], q.options.restrict)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, s := range page {
				if !yield(s, nil) {
					return
				}
			}
			ids = ids[n:]
		}
	}
}

// List collects All.
func (q *Query) List(ctx context.Context) ([]*object.Server, error) {
	var out []*object.Server
	for s, err := range q.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Get returns the only matching object. No match is ErrNotFound, more than
// one is ErrInvalidRequest.
func (q *Query) Get(ctx context.Context) (*object.Server, error) {
	one := *q
	one.options.offset, one.options.limit = 0, 2
	servers, err := one.List(ctx)
	if err != nil {
		return nil, err
	}
	switch len(servers) {
	case 0:
		return nil, errors.NewNotFoundError("no object matches %s", q)
	case 1:
		return servers[0], nil
	}
	return nil, errors.NewInvalidRequestError("more than one object matches %s", q)
}

// Count returns the number of matching objects, ignoring the slice.
func (q *Query) Count(ctx context.Context) (int, error) {
	var n int
	err := q.executor.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM server "+objectAlias+" WHERE "+q.compiled.where,
		q.compiled.whereArgs...).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count query results")
	}
	return n, nil
}
