package dsqlengine

// This file defines the query tree, the lingua franca passed between the
// parser, RLS enforcer, optimizer, and SQL generator (spec §3). Trees are
// built once by the parser, mutated only by the RLS enforcer, and immutable
// from optimization onward — implemented as plain tagged-variant structs
// rather than an interface hierarchy, per the design note in spec §9.

// AggregateFunc enumerates the aggregate functions a Field may name.
type AggregateFunc string

const (
	AggCount         AggregateFunc = "COUNT"
	AggCountDistinct AggregateFunc = "COUNT_DISTINCT"
	AggSum           AggregateFunc = "SUM"
	AggAvg           AggregateFunc = "AVG"
	AggMin           AggregateFunc = "MIN"
	AggMax           AggregateFunc = "MAX"
)

// Op enumerates the comparison operators a Condition leaf may use.
type Op string

const (
	OpEq         Op = "="
	OpNeq        Op = "!="
	OpLt         Op = "<"
	OpLte        Op = "<="
	OpGt         Op = ">"
	OpGte        Op = ">="
	OpLike       Op = "LIKE"
	OpContains   Op = "CONTAINS"
	OpStartsWith Op = "STARTS_WITH"
	OpEndsWith   Op = "ENDS_WITH"
	OpIn         Op = "IN"
	OpNotIn      Op = "NOT_IN"
	OpIsNull     Op = "IS_NULL"
	OpIsNotNull  Op = "IS_NOT_NULL"
)

// LogicalOp joins two Conditions.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "AND"
	LogicalOr  LogicalOp = "OR"
)

// Direction is an ORDER BY sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Nulls controls NULLS FIRST/LAST placement in ORDER BY.
type Nulls string

const (
	NullsFirst Nulls = "FIRST"
	NullsLast  Nulls = "LAST"
)

// JoinType is the SQL join kind a Join clause compiles to.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
)

// FieldName is a possibly-dotted field reference, e.g. "Name" or
// "Account.Name". The leading segment of a dotted reference names a
// relationship on the query's from-object.
type FieldName string

// Relationship reports the leading segment of a dotted field name and
// whether the name is dotted at all.
func (f FieldName) Relationship() (string, bool) {
	for i := 0; i < len(f); i++ {
		if f[i] == '.' {
			return string(f[:i]), true
		}
	}
	return "", false
}

// Field is either a plain/dotted field reference, an aggregate, or a nested
// subquery in the SELECT list. Exactly one of (Name), (Aggregate), or
// (Subquery) is set; which is set is load-bearing, not just a convenience —
// callers must switch on it rather than guess from zero values.
type Field struct {
	// Name is set for a plain or dotted field reference.
	Name FieldName

	// AggregateFn and AggregateArg are set for an aggregate field.
	// AggregateArg is empty for COUNT(*).
	AggregateFn  AggregateFunc
	AggregateArg FieldName

	// Subquery is set for a nested query in the SELECT list.
	Subquery *Query

	// Alias is an optional "AS alias" or bare trailing alias token.
	Alias string
}

// IsAggregate reports whether the field is an aggregate function call.
func (f Field) IsAggregate() bool { return f.AggregateFn != "" }

// IsSubquery reports whether the field is a nested SELECT-list subquery.
func (f Field) IsSubquery() bool { return f.Subquery != nil }

// Condition is a binary tree: either a logical internal node (AND/OR) or a
// leaf predicate. Exactly one of (Logical, Left, Right) or (Field, Op,
// Value/Subquery) applies.
type Condition struct {
	// Logical, Left, Right are set for an internal node.
	Logical LogicalOp
	Left    *Condition
	Right   *Condition

	// Field, Op are set for a leaf node.
	Field FieldName
	Op    Op

	// Value holds a literal (or slice of literals for IN/NOT IN). Subquery,
	// when set, is used instead of Value for IN/NOT IN with a nested SELECT.
	Value    any
	Subquery *Query
}

// IsLeaf reports whether this node is a predicate rather than an AND/OR
// combinator.
func (c *Condition) IsLeaf() bool { return c.Logical == "" }

// And builds an internal AND node, skipping nil operands so callers (e.g.
// the RLS enforcer) can compose conditions without nil-checking at every
// call site.
func And(left, right *Condition) *Condition {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return &Condition{Logical: LogicalAnd, Left: left, Right: right}
}

// Or builds an internal OR node over two or more operands, left-associating
// in argument order. Nil operands are skipped.
func Or(conditions ...*Condition) *Condition {
	var out *Condition
	for _, c := range conditions {
		if c == nil {
			continue
		}
		if out == nil {
			out = c
			continue
		}
		out = &Condition{Logical: LogicalOr, Left: out, Right: c}
	}
	return out
}

// Order is a single ORDER BY item.
type Order struct {
	Field     FieldName
	Direction Direction
	Nulls     Nulls
}

// Join is a derived relationship edge, materialized by the parser from a
// dotted field reference and deduplicated by RelationshipName.
type Join struct {
	RelationshipName   string
	TargetObject       string
	ForeignKey         string
	PrimaryKey         string
	Type               JoinType
	EstimatedRowCount  int64
	Selectivity        float64
}

// Query is the query tree: the lingua franca passed between pipeline
// stages. Invariants (enforced by the parser and never violated
// downstream): Fields is non-empty; every Field has exactly one of
// Name/Aggregate/Subquery set; Having requires a non-empty GroupBy or an
// aggregate Field.
type Query struct {
	FromObject string
	Fields     []Field
	Where      *Condition
	OrderBy    []Order
	GroupBy    []FieldName
	Having     *Condition
	Limit      *int
	Offset     *int
	Joins      []Join
}

// IsAggregateQuery reports whether any select-list field is an aggregate or
// the query groups by something — used by the optimizer to decide
// streaming vs. materializing strategy (spec §4.3).
func (q *Query) IsAggregateQuery() bool {
	if len(q.GroupBy) > 0 {
		return true
	}
	for _, f := range q.Fields {
		if f.IsAggregate() {
			return true
		}
	}
	return false
}

// Clone performs a shallow-structural deep copy sufficient for the RLS
// enforcer to rewrite Where without mutating the parser's original tree.
// Slices are copied; the Where/Having condition trees are shared, not
// copied (the enforcer replaces Where with a new root rather than mutating
// the old one). Field/Join values are copied by
// value (they contain no further mutable pointers besides Subquery, which
// is intentionally shared — subqueries are never rewritten by RLS, spec
// §4.2 only ANDs a predicate onto the top-level Where).
func (q *Query) Clone() *Query {
	clone := *q
	clone.Fields = append([]Field(nil), q.Fields...)
	clone.OrderBy = append([]Order(nil), q.OrderBy...)
	clone.GroupBy = append([]FieldName(nil), q.GroupBy...)
	clone.Joins = append([]Join(nil), q.Joins...)
	return &clone
}
