// Package query compiles attribute filters into SQL over the attribute
// store and streams the matching objects.
package query

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/serveradmin/logger"
	"github.com/teranos/serveradmin/serverdb/filter"
	"github.com/teranos/serveradmin/serverdb/parser"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// Config bounds query execution.
type Config struct {
	// PageSize is the number of objects materialised per round of
	// attribute reads.
	PageSize int
	// MaxLimit caps the limit of every slice. Zero means no cap.
	MaxLimit int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{PageSize: 500, MaxLimit: 10000}
}

// Executor runs queries against one database and schema.
type Executor struct {
	db     *sql.DB
	schema *schema.Schema
	config Config
	log    *zap.SugaredLogger
}

// NewExecutor creates an executor. A nil logger disables logging.
func NewExecutor(db *sql.DB, sch *schema.Schema, config Config, log *zap.SugaredLogger) *Executor {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	return &Executor{db: db, schema: sch, config: config, log: log}
}

// Schema returns the schema queries are resolved against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

type options struct {
	restrict []string
	orderBy  []string
	offset   int
	limit    int
	sliced   bool
}

// Option adjusts a query.
type Option func(*options)

// Restrict loads only the given attributes (object_id is always present).
// Without it every attribute visible for an object's servertype is loaded.
func Restrict(attrs ...string) Option {
	return func(o *options) { o.restrict = append([]string{}, attrs...) }
}

// OrderBy sorts by the given attributes, first key primary. Ties are broken
// by object_id, which is the creation order.
func OrderBy(attrs ...string) Option {
	return func(o *options) { o.orderBy = append([]string{}, attrs...) }
}

// Slice skips offset objects and returns at most limit. A limit of zero
// means no limit besides Config.MaxLimit.
func Slice(offset, limit int) Option {
	return func(o *options) {
		o.offset, o.limit, o.sliced = max(offset, 0), max(limit, 0), true
	}
}

// Query compiles filters, a map from attribute id to filter combined with
// AND. Unknown attributes and inapplicable filters fail here, before the
// store is touched.
func (e *Executor) Query(filters map[string]filter.Filter, opts ...Option) (*Query, error) {
	start := time.Now()
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.sliced && e.config.MaxLimit > 0 && (o.limit == 0 || o.limit > e.config.MaxLimit) {
		o.limit = e.config.MaxLimit
	}

	c, err := compile(e.schema, filters, o)
	if err != nil {
		return nil, err
	}
	q := &Query{executor: e, compiled: c, options: *o}
	if e.log != nil {
		e.log.Debugw("compiled query",
			logger.FieldQuery, q.String(),
			logger.FieldCount, len(c.servertypes),
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	}
	return q, nil
}

// ParseQuery parses query text and compiles it.
func (e *Executor) ParseQuery(text string, opts ...Option) (*Query, error) {
	filters, err := parser.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	return e.Query(filters, opts...)
}
