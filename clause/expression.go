// Package clause renders condition-tree leaves into dialect-aware SQL
// fragments. It mirrors the shape of a typical expression-builder package:
// one small struct per operator, each with a Build method — adapted here to
// take a Quoter so identifier quoting and case-insensitive LIKE choice are
// resolved per target database rather than hardcoded.
package clause

import (
	"fmt"
	"strings"
)

// Quoter is the minimal dialect surface this package needs. It is
// satisfied structurally by dsqlengine.Dialect without either package
// importing the other.
type Quoter interface {
	QuoteIdentifier(name string) string
	CaseInsensitiveLikeOperator() string
}

// Column identifies a (possibly join-aliased) table column.
type Column struct {
	Table string
	Name  string
}

// Render quotes the column for the given dialect, qualifying it with the
// table alias when one is set.
func (c Column) Render(q Quoter) string {
	if c.Table != "" {
		return q.QuoteIdentifier(c.Table) + "." + q.QuoteIdentifier(c.Name)
	}
	return q.QuoteIdentifier(c.Name)
}

// Expression is a leaf or composite SQL fragment. Build returns the SQL
// text (with "?" placeholders, later rewritten by the generator's
// squirrel.PlaceholderFormat) and the positional argument values.
type Expression interface {
	Build(q Quoter) (sql string, args []any)
}

// Eq renders "column = ?".
type Eq struct {
	Column Column
	Value  any
}

func (e Eq) Build(q Quoter) (string, []any) {
	return e.Column.Render(q) + " = ?", []any{e.Value}
}

// Neq renders "column <> ?".
type Neq struct {
	Column Column
	Value  any
}

func (n Neq) Build(q Quoter) (string, []any) {
	return n.Column.Render(q) + " <> ?", []any{n.Value}
}

// Gt renders "column > ?".
type Gt struct {
	Column Column
	Value  any
}

func (g Gt) Build(q Quoter) (string, []any) {
	return g.Column.Render(q) + " > ?", []any{g.Value}
}

// Gte renders "column >= ?".
type Gte struct {
	Column Column
	Value  any
}

func (g Gte) Build(q Quoter) (string, []any) {
	return g.Column.Render(q) + " >= ?", []any{g.Value}
}

// Lt renders "column < ?".
type Lt struct {
	Column Column
	Value  any
}

func (l Lt) Build(q Quoter) (string, []any) {
	return l.Column.Render(q) + " < ?", []any{l.Value}
}

// Lte renders "column <= ?".
type Lte struct {
	Column Column
	Value  any
}

func (l Lte) Build(q Quoter) (string, []any) {
	return l.Column.Render(q) + " <= ?", []any{l.Value}
}

// Like renders a pattern match. CaseInsensitive selects the dialect's
// case-insensitive operator (ILIKE on Postgres, LIKE elsewhere), used for
// LIKE and for the CONTAINS/STARTS_WITH/ENDS_WITH operators synthesized
// from LIKE patterns during parsing.
type Like struct {
	Column          Column
	Value           string
	CaseInsensitive bool
}

func (l Like) Build(q Quoter) (string, []any) {
	op := "LIKE"
	if l.CaseInsensitive {
		op = q.CaseInsensitiveLikeOperator()
	}
	return fmt.Sprintf("%s %s ?", l.Column.Render(q), op), []any{l.Value}
}

// NotLike renders the negation of Like.
type NotLike struct {
	Column          Column
	Value           string
	CaseInsensitive bool
}

func (n NotLike) Build(q Quoter) (string, []any) {
	op := "NOT LIKE"
	if n.CaseInsensitive {
		op = "NOT " + q.CaseInsensitiveLikeOperator()
	}
	return fmt.Sprintf("%s %s ?", n.Column.Render(q), op), []any{n.Value}
}

// IsNull renders "column IS NULL".
type IsNull struct {
	Column Column
}

func (i IsNull) Build(q Quoter) (string, []any) {
	return i.Column.Render(q) + " IS NULL", nil
}

// IsNotNull renders "column IS NOT NULL".
type IsNotNull struct {
	Column Column
}

func (i IsNotNull) Build(q Quoter) (string, []any) {
	return i.Column.Render(q) + " IS NOT NULL", nil
}

// IN renders "column IN (?, ?, ...)". An empty value list renders as the
// tautologically-false "1 = 0" rather than invalid SQL: no value can ever
// match an empty set.
type IN struct {
	Column Column
	Values []any
}

func (i IN) Build(q Quoter) (string, []any) {
	if len(i.Values) == 0 {
		return "1 = 0", nil
	}
	placeholders := make([]string, len(i.Values))
	for idx := range i.Values {
		placeholders[idx] = "?"
	}
	return fmt.Sprintf("%s IN (%s)", i.Column.Render(q), strings.Join(placeholders, ", ")), i.Values
}

// NotIn renders "column NOT IN (?, ?, ...)". An empty value list renders as
// the tautologically-true "1 = 1": nothing is excluded by an empty set.
type NotIn struct {
	Column Column
	Values []any
}

func (n NotIn) Build(q Quoter) (string, []any) {
	if len(n.Values) == 0 {
		return "1 = 1", nil
	}
	placeholders := make([]string, len(n.Values))
	for idx := range n.Values {
		placeholders[idx] = "?"
	}
	return fmt.Sprintf("%s NOT IN (%s)", n.Column.Render(q), strings.Join(placeholders, ", ")), n.Values
}

// InSubquery renders "column IN (<subquery sql>)", splicing in
// already-generated subquery SQL and forwarding its positional arguments.
type InSubquery struct {
	Column       Column
	SubquerySQL  string
	SubqueryArgs []any
	Negate       bool
}

func (i InSubquery) Build(q Quoter) (string, []any) {
	op := "IN"
	if i.Negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", i.Column.Render(q), op, i.SubquerySQL), i.SubqueryArgs
}

// And composes expressions with AND, parenthesizing each operand. An empty
// And is the identity element, rendering as the tautology "1 = 1".
type And []Expression

func (a And) Build(q Quoter) (string, []any) {
	if len(a) == 0 {
		return "1 = 1", nil
	}
	var sqls []string
	var args []any
	for _, expr := range a {
		sql, exprArgs := expr.Build(q)
		sqls = append(sqls, "("+sql+")")
		args = append(args, exprArgs...)
	}
	return strings.Join(sqls, " AND "), args
}

// Or composes expressions with OR, parenthesizing each operand. An empty Or
// is the identity element, rendering as the contradiction "1 = 0".
type Or []Expression

func (o Or) Build(q Quoter) (string, []any) {
	if len(o) == 0 {
		return "1 = 0", nil
	}
	var sqls []string
	var args []any
	for _, expr := range o {
		sql, exprArgs := expr.Build(q)
		sqls = append(sqls, "("+sql+")")
		args = append(args, exprArgs...)
	}
	return strings.Join(sqls, " OR "), args
}

// Raw splices in a pre-rendered SQL fragment. Used by the generator for
// leaves it has already resolved outside this package (e.g. the RLS
// enforcer's literal deny-all predicate).
type Raw struct {
	SQL  string
	Args []any
}

func (e Raw) Build(q Quoter) (string, []any) {
	return e.SQL, e.Args
}
