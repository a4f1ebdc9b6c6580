package dsqlengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_BasicSelect(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Id, Name FROM Account WHERE Industry = 'Tech'")
	require.NoError(t, err)
	assert.Equal(t, "Account", q.FromObject)
	require.Len(t, q.Fields, 2)
	assert.Equal(t, FieldName("Id"), q.Fields[0].Name)
	assert.Equal(t, FieldName("Name"), q.Fields[1].Name)
	require.NotNil(t, q.Where)
	assert.True(t, q.Where.IsLeaf())
	assert.Equal(t, OpEq, q.Where.Op)
	assert.Equal(t, "Tech", q.Where.Value)
}

func TestParser_MissingFromIsParseError(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse(context.Background(), "SELECT Id")
	require.Error(t, err)
	_, ok := err.(*ParseError)
	assert.True(t, ok)
}

func TestParser_EmptySelectListIsParseError(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse(context.Background(), "SELECT FROM Account")
	require.Error(t, err)
	_, ok := err.(*ParseError)
	assert.True(t, ok)
}

// TestParser_LeftToRightLogicalPrecedence is the documented precedence
// quirk's golden case: "A OR B AND C" parses as "(A) OR (B AND C)" since OR
// is the first top-level operator scanning left to right.
func TestParser_LeftToRightLogicalPrecedence(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Id FROM Account WHERE A = 1 OR B = 2 AND C = 3")
	require.NoError(t, err)

	where := q.Where
	require.False(t, where.IsLeaf())
	assert.Equal(t, LogicalOr, where.Logical)

	left := where.Left
	require.True(t, left.IsLeaf())
	assert.Equal(t, FieldName("A"), left.Field)

	right := where.Right
	require.False(t, right.IsLeaf())
	assert.Equal(t, LogicalAnd, right.Logical)
	assert.Equal(t, FieldName("B"), right.Left.Field)
	assert.Equal(t, FieldName("C"), right.Right.Field)
}

func TestParser_ParenthesesOverridePrecedence(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Id FROM Account WHERE (A = 1 OR B = 2) AND C = 3")
	require.NoError(t, err)

	where := q.Where
	require.False(t, where.IsLeaf())
	assert.Equal(t, LogicalAnd, where.Logical)
	assert.Equal(t, LogicalOr, where.Left.Logical)
	assert.Equal(t, FieldName("C"), where.Right.Field)
}

func TestParser_InAndLike(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Id FROM Account WHERE Industry IN ('Tech', 'Finance') AND Name LIKE 'Acme%'")
	require.NoError(t, err)

	where := q.Where
	require.False(t, where.IsLeaf())
	left := where.Left
	assert.Equal(t, OpIn, left.Op)
	assert.Equal(t, []any{"Tech", "Finance"}, left.Value)

	right := where.Right
	assert.Equal(t, OpStartsWith, right.Op)
	assert.Equal(t, "Acme", right.Value)
}

func TestParser_IsNullAndIsNotNull(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Id FROM Account WHERE OwnerId IS NULL OR Industry IS NOT NULL")
	require.NoError(t, err)

	where := q.Where
	assert.Equal(t, OpIsNull, where.Left.Op)
	assert.Equal(t, OpIsNotNull, where.Right.Op)
}

func TestParser_AggregateAndGroupBy(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Industry, COUNT(Id) total FROM Account GROUP BY Industry HAVING COUNT(Id) > 1")
	require.NoError(t, err)

	require.Len(t, q.Fields, 2)
	assert.True(t, q.Fields[1].IsAggregate())
	assert.Equal(t, AggCount, q.Fields[1].AggregateFn)
	assert.Equal(t, "total", q.Fields[1].Alias)
	assert.True(t, q.IsAggregateQuery())
	require.NotNil(t, q.Having)
}

func TestParser_HavingWithoutGroupByOrAggregateFails(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Parse(context.Background(), "SELECT Id FROM Account HAVING Id > 1")
	require.Error(t, err)
}

func TestParser_OrderByLimitOffset(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Id FROM Account ORDER BY Name DESC NULLS FIRST LIMIT 10 OFFSET 5")
	require.NoError(t, err)

	require.Len(t, q.OrderBy, 1)
	assert.Equal(t, Desc, q.OrderBy[0].Direction)
	assert.Equal(t, NullsFirst, q.OrderBy[0].Nulls)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
	require.NotNil(t, q.Offset)
	assert.Equal(t, 5, *q.Offset)
}

func TestParser_DottedFieldResolvesRelationship(t *testing.T) {
	meta := inMemoryMetadata{
		"Contact": ObjectMetadata{
			ObjectName: "Contact",
			Relationships: []Relationship{
				{Name: "Account", TargetObject: "Account", ForeignKey: "account_id", ReferencedKey: "id", Kind: RelationshipLookup},
			},
		},
	}
	p := NewParser(meta)
	q, err := p.Parse(context.Background(), "SELECT Id, Account.Name FROM Contact")
	require.NoError(t, err)

	require.Len(t, q.Joins, 1)
	assert.Equal(t, "Account", q.Joins[0].RelationshipName)
	assert.Equal(t, "account_id", q.Joins[0].ForeignKey)
	assert.Equal(t, "id", q.Joins[0].PrimaryKey)
}

func TestParser_UnresolvableRelationshipIsWarningNotError(t *testing.T) {
	meta := inMemoryMetadata{
		"Contact": ObjectMetadata{ObjectName: "Contact"},
	}
	p := NewParser(meta)
	q, err := p.Parse(context.Background(), "SELECT Id, Ghost.Name FROM Contact")
	require.NoError(t, err)
	assert.Empty(t, q.Joins)
}

// TestParser_IdempotentParsing is the determinism law from spec §8: parsing
// the same text twice with the same metadata snapshot yields structurally
// equal trees.
func TestParser_IdempotentParsing(t *testing.T) {
	p := NewParser(nil)
	text := "SELECT Id, Name FROM Account WHERE Industry = 'Tech' ORDER BY Name LIMIT 5"

	q1, err := p.Parse(context.Background(), text)
	require.NoError(t, err)
	q2, err := p.Parse(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, q1, q2)
}

func TestParser_SubqueryInSelectList(t *testing.T) {
	p := NewParser(nil)
	q, err := p.Parse(context.Background(), "SELECT Id, (SELECT Id FROM Contact WHERE AccountId = Id) contacts FROM Account")
	require.NoError(t, err)

	require.Len(t, q.Fields, 2)
	assert.True(t, q.Fields[1].IsSubquery())
	assert.Equal(t, "Contact", q.Fields[1].Subquery.FromObject)
}

// inMemoryMetadata is a tiny MetadataProvider stub shared by this package's
// tests.
type inMemoryMetadata map[string]ObjectMetadata

func (m inMemoryMetadata) Get(ctx context.Context, objectName string) (ObjectMetadata, error) {
	meta, ok := m[objectName]
	if !ok {
		return ObjectMetadata{}, &MetadataError{Object: objectName, Reason: "unknown object"}
	}
	return meta, nil
}
