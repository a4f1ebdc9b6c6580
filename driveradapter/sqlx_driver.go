// Package driveradapter provides a concrete dsqlengine.Driver backed by
// database/sql (via sqlx), the out-of-scope physical collaborator the
// engine's Driver interface abstracts over (spec §6.1). It is grounded on
// the teacher's session.go, which wraps *sqlx.DB as its Executor; this
// adapter narrows that to the single round-trip dsqlengine.Driver needs.
package driveradapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/arllen133/dsqlengine"
)

// SQLXDriver executes generated SQL against a *sql.DB wrapped in sqlx,
// substituting the generator's named params (p0, p1, ...) back into
// positional arguments in declaration order before running the query.
type SQLXDriver struct {
	db *sqlx.DB
}

// New wraps db for use as a dsqlengine.Driver.
func New(db *sqlx.DB) *SQLXDriver {
	return &SQLXDriver{db: db}
}

// Execute runs sqlText against the wrapped database, substituting params in
// the order the generator allocated them (p0, p1, ...), and folds every
// returned row into a map[string]any via sqlx's MapScan.
func (d *SQLXDriver) Execute(ctx context.Context, sqlText string, params map[string]any) (dsqlengine.Rows, error) {
	args := orderedArgs(params)

	rows, err := d.db.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("driveradapter: query: %w", err)
	}
	defer rows.Close()

	var out dsqlengine.Rows
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("driveradapter: scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("driveradapter: rows: %w", err)
	}
	return out, nil
}

// orderedArgs reorders a generator param map ({"p0": ..., "p1": ...}) back
// into a positional slice, matching the @pN markers the dialect's
// PlaceholderFormat wrote into the SQL text.
func orderedArgs(params map[string]any) []any {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return paramIndex(keys[i]) < paramIndex(keys[j])
	})
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = params[k]
	}
	return args
}

// paramIndex parses the trailing integer off a "pN" key. Malformed keys
// get -1 and so sort first, rather than panicking, since a caller-supplied Driver is
// expected to be robust to an unexpected param map shape.
func paramIndex(key string) int {
	n := 0
	i := 1 // skip leading 'p'
	if len(key) < 2 {
		return -1
	}
	for ; i < len(key); i++ {
		c := key[i]
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}
