package dsqlengine

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/arllen133/dsqlengine/clause"
)

// This file implements SQL generation (spec §4.4): compiling a costed Plan
// into dialect-specific, parameterized SQL. It builds on squirrel for
// statement assembly and on the clause package for dialect-aware leaf
// predicate rendering, the same layered approach the teacher's QueryBuilder
// takes over its own Dialect/clause split.
//
// Placeholder rewriting happens exactly once, at the outermost call: every
// level of assembly (including nested subqueries) is built with squirrel's
// plain "?" placeholders, and only the fully-assembled top-level SQL is run
// through the dialect's named PlaceholderFormat. Rewriting at each nesting
// level independently would renumber every subquery's parameters starting
// from p0 again, colliding with the parent statement's own numbering.

// Generated is the output of SQL generation: ready-to-execute SQL text plus
// its positional parameters keyed by bare "p0", "p1", ... names (the "@"
// prefix lives only in SQL, per the dialect's PlaceholderFormat).
type Generated struct {
	SQL    string
	Params map[string]any
}

// Generator compiles plans to SQL for a specific dialect.
type Generator struct {
	dialect  Dialect
	metadata MetadataProvider
}

// NewGenerator builds a Generator targeting the given dialect.
func NewGenerator(dialect Dialect, metadata MetadataProvider) *Generator {
	return &Generator{dialect: dialect, metadata: metadata}
}

// Generate compiles plan into dialect SQL. Every value ends up as a bound
// parameter, never string-interpolated into the SQL text (spec §8,
// Parameter safety law).
func (g *Generator) Generate(ctx context.Context, plan *Plan) (*Generated, error) {
	sqlText, args, err := g.compile(ctx, plan)
	if err != nil {
		return nil, err
	}

	rewritten, err := g.dialect.PlaceholderFormat().ReplacePlaceholders(sqlText)
	if err != nil {
		return nil, &SqlError{SQL: sqlText, Err: err}
	}

	params := make(map[string]any, len(args))
	for i, a := range args {
		params[fmt.Sprintf("p%d", i)] = a
	}
	return &Generated{SQL: rewritten, Params: params}, nil
}

// compile builds SQL with squirrel's default "?" placeholders and returns
// the accompanying positional args, recursing into subqueries without
// rewriting placeholders at any nested level.
func (g *Generator) compile(ctx context.Context, plan *Plan) (string, []any, error) {
	q := plan.Query

	meta, err := g.metadata.Get(ctx, q.FromObject)
	if err != nil {
		return "", nil, &MetadataError{Object: q.FromObject, Reason: err.Error()}
	}

	aliasOf := make(map[string]string, len(plan.JoinOrder))
	for i, j := range plan.JoinOrder {
		aliasOf[j.RelationshipName] = fmt.Sprintf("t%d", i+1)
	}

	builder := sq.Select().From(g.dialect.QuoteIdentifier(meta.TableName))

	columns, err := g.buildSelectList(ctx, q.Fields, meta, aliasOf)
	if err != nil {
		return "", nil, err
	}
	for _, col := range columns {
		builder = builder.Column(sq.Expr(col.sql, col.args...))
	}

	for _, j := range plan.JoinOrder {
		joinMeta, err := g.metadata.Get(ctx, j.TargetObject)
		if err != nil {
			return "", nil, &MetadataError{Object: j.TargetObject, Relationship: j.RelationshipName, Reason: err.Error()}
		}
		alias := aliasOf[j.RelationshipName]
		onClause := fmt.Sprintf("%s.%s = %s.%s",
			g.dialect.QuoteIdentifier(meta.TableName), g.dialect.QuoteIdentifier(j.ForeignKey),
			g.dialect.QuoteIdentifier(alias), g.dialect.QuoteIdentifier(j.PrimaryKey))
		joinSQL := fmt.Sprintf("%s AS %s ON %s", g.dialect.QuoteIdentifier(joinMeta.TableName), g.dialect.QuoteIdentifier(alias), onClause)

		switch j.Type {
		case JoinLeft:
			builder = builder.LeftJoin(joinSQL)
		case JoinRight:
			builder = builder.RightJoin(joinSQL)
		default:
			builder = builder.Join(joinSQL)
		}
	}

	if q.Where != nil {
		whereExpr, err := g.buildCondition(ctx, q.Where, meta, aliasOf)
		if err != nil {
			return "", nil, err
		}
		whereSQL, whereArgs := whereExpr.Build(g.dialect)
		builder = builder.Where(sq.Expr(whereSQL, whereArgs...))
	}

	if len(q.GroupBy) > 0 {
		groupCols := make([]string, len(q.GroupBy))
		for i, f := range q.GroupBy {
			col, err := g.resolveColumn(f, meta, aliasOf)
			if err != nil {
				return "", nil, err
			}
			groupCols[i] = col.Render(g.dialect)
		}
		builder = builder.GroupBy(groupCols...)
	}

	if q.Having != nil {
		havingExpr, err := g.buildCondition(ctx, q.Having, meta, aliasOf)
		if err != nil {
			return "", nil, err
		}
		havingSQL, havingArgs := havingExpr.Build(g.dialect)
		builder = builder.Having(havingSQL, havingArgs...)
	}

	orderSQL, err := g.buildOrderBy(q.OrderBy, meta, aliasOf)
	if err != nil {
		return "", nil, err
	}
	needsSyntheticOrder := len(q.OrderBy) == 0 && (q.Limit != nil || q.Offset != nil) && g.dialect.Name() == "mssql"
	if needsSyntheticOrder {
		orderSQL = "(SELECT NULL)"
	}
	if orderSQL != "" {
		builder = builder.OrderBy(orderSQL)
	}

	sqlText, args, err := builder.ToSql()
	if err != nil {
		return "", nil, &SqlError{Err: err}
	}

	sqlText += g.dialect.Paginate(q.Limit, q.Offset)

	return sqlText, args, nil
}

type columnSpec struct {
	sql  string
	args []any
}

// buildSelectList renders the SELECT list. Subqueries are generated
// recursively against the same dialect, with no RLS rewriting of their own
// — RLS only ever rewrites the top-level Where (spec §4.2) — and with
// their own "?" placeholders left unrewritten so the parent's single
// top-level placeholder pass stays correct.
func (g *Generator) buildSelectList(ctx context.Context, fields []Field, meta ObjectMetadata, aliasOf map[string]string) ([]columnSpec, error) {
	var columns []columnSpec

	for _, f := range fields {
		switch {
		case f.IsSubquery():
			subSQL, subArgs, err := g.compile(ctx, &Plan{Query: f.Subquery, JoinOrder: f.Subquery.Joins})
			if err != nil {
				return nil, err
			}
			expr := "(" + subSQL + ")"
			if f.Alias != "" {
				expr += " AS " + g.dialect.QuoteIdentifier(f.Alias)
			}
			columns = append(columns, columnSpec{sql: expr, args: subArgs})

		case f.IsAggregate():
			expr, err := g.renderAggregate(f, meta, aliasOf)
			if err != nil {
				return nil, err
			}
			columns = append(columns, columnSpec{sql: expr})

		default:
			col, err := g.resolveColumn(f.Name, meta, aliasOf)
			if err != nil {
				return nil, err
			}
			expr := col.Render(g.dialect)
			if f.Alias != "" {
				expr += " AS " + g.dialect.QuoteIdentifier(f.Alias)
			}
			columns = append(columns, columnSpec{sql: expr})
		}
	}

	return columns, nil
}

func (g *Generator) renderAggregate(f Field, meta ObjectMetadata, aliasOf map[string]string) (string, error) {
	var argExpr string
	switch {
	case f.AggregateFn == AggCount && f.AggregateArg == "":
		argExpr = "*"
	default:
		col, err := g.resolveColumn(f.AggregateArg, meta, aliasOf)
		if err != nil {
			return "", err
		}
		argExpr = col.Render(g.dialect)
	}

	var expr string
	switch f.AggregateFn {
	case AggCountDistinct:
		expr = fmt.Sprintf("COUNT(DISTINCT %s)", argExpr)
	default:
		expr = fmt.Sprintf("%s(%s)", f.AggregateFn, argExpr)
	}

	if f.Alias != "" {
		expr += " AS " + g.dialect.QuoteIdentifier(f.Alias)
	}
	return expr, nil
}

// resolveColumn maps a (possibly dotted) FieldName to a clause.Column,
// using the join alias table for dotted references and the object's
// declared column mapping (falling back to the field name itself) for
// plain ones.
func (g *Generator) resolveColumn(name FieldName, meta ObjectMetadata, aliasOf map[string]string) (clause.Column, error) {
	if rel, dotted := name.Relationship(); dotted {
		alias, ok := aliasOf[rel]
		if !ok {
			return clause.Column{}, &MetadataError{Object: meta.ObjectName, Relationship: rel, Reason: "no join resolved for relationship reference " + string(name)}
		}
		leaf := string(name)[len(rel)+1:]
		return clause.Column{Table: alias, Name: leaf}, nil
	}

	if fm, ok := meta.Fields[string(name)]; ok {
		return clause.Column{Name: fm.ColumnName}, nil
	}
	return clause.Column{Name: string(name)}, nil
}

func (g *Generator) buildCondition(ctx context.Context, c *Condition, meta ObjectMetadata, aliasOf map[string]string) (clause.Expression, error) {
	if c == nil {
		return clause.Raw{SQL: "1 = 1"}, nil
	}

	if !c.IsLeaf() {
		left, err := g.buildCondition(ctx, c.Left, meta, aliasOf)
		if err != nil {
			return nil, err
		}
		right, err := g.buildCondition(ctx, c.Right, meta, aliasOf)
		if err != nil {
			return nil, err
		}
		if c.Logical == LogicalAnd {
			return clause.And{left, right}, nil
		}
		return clause.Or{left, right}, nil
	}

	if c.Field == "1" {
		// The RLS enforcer's synthesized deny-all/admin predicates use the
		// sentinel field "1" rather than a real column.
		v, _ := c.Value.(int64)
		if c.Op == OpEq && v == 0 {
			return clause.Raw{SQL: "1 = 0"}, nil
		}
		return clause.Raw{SQL: "1 = 1"}, nil
	}

	col, err := g.resolveColumn(c.Field, meta, aliasOf)
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case OpEq:
		return clause.Eq{Column: col, Value: c.Value}, nil
	case OpNeq:
		return clause.Neq{Column: col, Value: c.Value}, nil
	case OpLt:
		return clause.Lt{Column: col, Value: c.Value}, nil
	case OpLte:
		return clause.Lte{Column: col, Value: c.Value}, nil
	case OpGt:
		return clause.Gt{Column: col, Value: c.Value}, nil
	case OpGte:
		return clause.Gte{Column: col, Value: c.Value}, nil
	case OpLike:
		s, _ := c.Value.(string)
		return clause.Like{Column: col, Value: s, CaseInsensitive: true}, nil
	case OpContains:
		s, _ := c.Value.(string)
		return clause.Like{Column: col, Value: "%" + s + "%", CaseInsensitive: true}, nil
	case OpStartsWith:
		s, _ := c.Value.(string)
		return clause.Like{Column: col, Value: s + "%", CaseInsensitive: true}, nil
	case OpEndsWith:
		s, _ := c.Value.(string)
		return clause.Like{Column: col, Value: "%" + s, CaseInsensitive: true}, nil
	case OpIsNull:
		return clause.IsNull{Column: col}, nil
	case OpIsNotNull:
		return clause.IsNotNull{Column: col}, nil
	case OpIn, OpNotIn:
		if c.Subquery != nil {
			subSQL, subArgs, err := g.compile(ctx, &Plan{Query: c.Subquery, JoinOrder: c.Subquery.Joins})
			if err != nil {
				return nil, err
			}
			return clause.InSubquery{Column: col, SubquerySQL: subSQL, SubqueryArgs: subArgs, Negate: c.Op == OpNotIn}, nil
		}
		values, _ := c.Value.([]any)
		if c.Op == OpIn {
			return clause.IN{Column: col, Values: values}, nil
		}
		return clause.NotIn{Column: col, Values: values}, nil
	default:
		return nil, NewParseError("unsupported operator in generated condition: " + string(c.Op))
	}
}

// buildOrderBy renders the ORDER BY list. When a dialect has no native
// NULLS FIRST/LAST support (MSSQL), a CASE-based tiebreaker is prepended to
// each sort key so the requested null placement still holds (spec §4.4).
func (g *Generator) buildOrderBy(orders []Order, meta ObjectMetadata, aliasOf map[string]string) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		col, err := g.resolveColumn(o.Field, meta, aliasOf)
		if err != nil {
			return "", err
		}
		rendered := col.Render(g.dialect)

		nullsSuffix := g.dialect.NullsClause(o.Nulls)
		if nullsSuffix == "" {
			nullRank := 1
			if o.Nulls == NullsFirst {
				nullRank = 0
			}
			otherRank := 1 - nullRank
			parts = append(parts, fmt.Sprintf("CASE WHEN %s IS NULL THEN %d ELSE %d END", rendered, nullRank, otherRank))
		}

		part := rendered + " " + string(o.Direction) + nullsSuffix
		parts = append(parts, part)
	}
	return strings.Join(parts, ", "), nil
}
