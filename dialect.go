package dsqlengine

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// This file implements dialect abstraction the same way the teacher's
// dialect.go does: a small interface capturing the handful of places SQL
// actually differs across engines, with one struct implementation per
// engine (spec §4.4). Where the teacher's Dialect hides placeholder style
// and upsert syntax, this one hides quoting, pagination, case-insensitive
// LIKE, and NULLS FIRST/LAST — the differences DSQL's own generator
// actually has to paper over.

var (
	PG    = PostgresDialect{}
	MSSQL = MSSQLDialect{}
	MOCK  = MockDialect{}
)

// Dialect abstracts the SQL differences the generator must account for per
// target database (spec §4.4).
type Dialect interface {
	// Name identifies the dialect for logging and metrics.
	Name() string

	// PlaceholderFormat returns the squirrel placeholder style this
	// dialect's generated SQL should use.
	PlaceholderFormat() sq.PlaceholderFormat

	// QuoteIdentifier wraps a table or column name in this dialect's
	// identifier quoting.
	QuoteIdentifier(name string) string

	// CaseInsensitiveLikeOperator returns the SQL operator used for a
	// case-insensitive LIKE-family match ("ILIKE" on Postgres; MSSQL and the
	// mock dialect use plain LIKE with no COLLATE clause, relying on the
	// database's default collation).
	CaseInsensitiveLikeOperator() string

	// Paginate renders the LIMIT/OFFSET tail of a query. Some dialects
	// (MSSQL pre-2012 semantics aside) require ORDER BY before OFFSET/FETCH;
	// the generator is responsible for supplying one when needed, but the
	// dialect decides the exact clause text given already-resolved values.
	Paginate(limit, offset *int) string

	// NullsClause renders the NULLS FIRST/LAST suffix for one ORDER BY
	// item, returning "" when the dialect has no native support and the
	// generator must instead emit a CASE-based tiebreaker.
	NullsClause(nulls Nulls) string
}

// namedPlaceholders is a squirrel.PlaceholderFormat that emits "@p0, @p1,
// ..." style named parameters instead of squirrel's built-in positional
// styles. The SQL generator's returned parameter map uses the bare "p0",
// "p1", ... keys (spec §4.4) — the "@" prefix lives only in the rendered
// SQL text, for drivers that expect named parameters.
type namedPlaceholders struct {
	prefix string
}

// ReplacePlaceholders implements squirrel.PlaceholderFormat by rewriting
// each "?" in sql, in order, to "<prefix>p<N>".
func (n namedPlaceholders) ReplacePlaceholders(sql string) (string, error) {
	var b strings.Builder
	count := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			fmt.Fprintf(&b, "%sp%d", n.prefix, count)
			count++
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String(), nil
}

// PostgresDialect targets PostgreSQL: double-quoted identifiers, ILIKE,
// native NULLS FIRST/LAST, and plain LIMIT/OFFSET pagination.
type PostgresDialect struct{}

func (d PostgresDialect) Name() string { return "postgres" }

func (d PostgresDialect) PlaceholderFormat() sq.PlaceholderFormat {
	return namedPlaceholders{prefix: "@"}
}

func (d PostgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d PostgresDialect) CaseInsensitiveLikeOperator() string { return "ILIKE" }

func (d PostgresDialect) Paginate(limit, offset *int) string {
	var b strings.Builder
	if limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *limit)
	}
	if offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *offset)
	}
	return b.String()
}

func (d PostgresDialect) NullsClause(nulls Nulls) string {
	if nulls == NullsFirst {
		return " NULLS FIRST"
	}
	return " NULLS LAST"
}

// MSSQLDialect targets SQL Server: bracketed identifiers, no ILIKE (LIKE is
// already case-insensitive under the default collation), no native NULLS
// FIRST/LAST, and OFFSET/FETCH pagination that requires an ORDER BY.
type MSSQLDialect struct{}

func (d MSSQLDialect) Name() string { return "mssql" }

func (d MSSQLDialect) PlaceholderFormat() sq.PlaceholderFormat {
	return namedPlaceholders{prefix: "@"}
}

func (d MSSQLDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d MSSQLDialect) CaseInsensitiveLikeOperator() string { return "LIKE" }

func (d MSSQLDialect) Paginate(limit, offset *int) string {
	if limit == nil && offset == nil {
		return ""
	}
	off := 0
	if offset != nil {
		off = *offset
	}
	var b strings.Builder
	fmt.Fprintf(&b, " OFFSET %d ROWS", off)
	if limit != nil {
		fmt.Fprintf(&b, " FETCH NEXT %d ROWS ONLY", *limit)
	}
	return b.String()
}

// NullsClause returns "" because MSSQL has no NULLS FIRST/LAST syntax; the
// generator compensates with a CASE WHEN col IS NULL THEN 0/1 END
// tiebreaker ordered ahead of the real column (spec §4.4).
func (d MSSQLDialect) NullsClause(nulls Nulls) string { return "" }

// MockDialect is a minimal, testing-oriented dialect with no quoting and
// simple LIMIT/OFFSET, used by the in-process test suite and the demo CLI
// (cmd/dsqlcli) where exact quoting doesn't matter.
type MockDialect struct{}

func (d MockDialect) Name() string { return "mock" }

func (d MockDialect) PlaceholderFormat() sq.PlaceholderFormat {
	return namedPlaceholders{prefix: "@"}
}

func (d MockDialect) QuoteIdentifier(name string) string { return name }

func (d MockDialect) CaseInsensitiveLikeOperator() string { return "LIKE" }

func (d MockDialect) Paginate(limit, offset *int) string {
	var b strings.Builder
	if limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *limit)
	}
	if offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *offset)
	}
	return b.String()
}

func (d MockDialect) NullsClause(nulls Nulls) string {
	if nulls == NullsFirst {
		return " NULLS FIRST"
	}
	return " NULLS LAST"
}
