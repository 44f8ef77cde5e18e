// Package storage maps the attribute store onto SQL: schema loading, the
// row encoding of typed values, materialisation of objects including their
// derived attributes, and the row mutations of a commit. Every function
// takes a Queryer so it runs inside a caller's read or write transaction.
package storage

import (
	"context"
	"database/sql"
	"strings"
)

// Queryer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ChunkSize bounds the number of ids bound into one IN list.
const ChunkSize = 500

// placeholders returns "?, ?, ..." for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

// chunks splits ids into slices of at most ChunkSize.
func chunks(ids []int64) [][]int64 {
	var out [][]int64
	for len(ids) > ChunkSize {
		out = append(out, ids[:ChunkSize])
		ids = ids[ChunkSize:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
