package dsqlengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresDialect_QuotingAndOperators(t *testing.T) {
	d := PostgresDialect{}
	assert.Equal(t, "postgres", d.Name())
	assert.Equal(t, `"accounts"`, d.QuoteIdentifier("accounts"))
	assert.Equal(t, `"weird""name"`, d.QuoteIdentifier(`weird"name`))
	assert.Equal(t, "ILIKE", d.CaseInsensitiveLikeOperator())
	assert.Equal(t, " NULLS FIRST", d.NullsClause(NullsFirst))
	assert.Equal(t, " NULLS LAST", d.NullsClause(NullsLast))
}

func TestPostgresDialect_Paginate(t *testing.T) {
	d := PostgresDialect{}
	ten, five := 10, 5
	assert.Equal(t, " LIMIT 10 OFFSET 5", d.Paginate(&ten, &five))
	assert.Equal(t, " LIMIT 10", d.Paginate(&ten, nil))
	assert.Equal(t, "", d.Paginate(nil, nil))
}

func TestMSSQLDialect_QuotingAndOperators(t *testing.T) {
	d := MSSQLDialect{}
	assert.Equal(t, "mssql", d.Name())
	assert.Equal(t, "[accounts]", d.QuoteIdentifier("accounts"))
	assert.Equal(t, "[weird]]name]", d.QuoteIdentifier("weird]name"))
	assert.Equal(t, "LIKE", d.CaseInsensitiveLikeOperator())
	assert.Equal(t, "", d.NullsClause(NullsFirst), "MSSQL has no native NULLS clause")
}

func TestMSSQLDialect_Paginate(t *testing.T) {
	d := MSSQLDialect{}
	ten, five := 10, 5
	assert.Equal(t, "", d.Paginate(nil, nil))
	assert.Equal(t, " OFFSET 0 ROWS FETCH NEXT 10 ROWS ONLY", d.Paginate(&ten, nil))
	assert.Equal(t, " OFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY", d.Paginate(&ten, &five))
	assert.Equal(t, " OFFSET 5 ROWS", d.Paginate(nil, &five))
}

func TestMockDialect_NoQuotingPlainLike(t *testing.T) {
	d := MockDialect{}
	assert.Equal(t, "mock", d.Name())
	assert.Equal(t, "accounts", d.QuoteIdentifier("accounts"))
	assert.Equal(t, "LIKE", d.CaseInsensitiveLikeOperator())
}

func TestNamedPlaceholders_RewritesInOrder(t *testing.T) {
	p := namedPlaceholders{prefix: "@"}
	out, err := p.ReplacePlaceholders("SELECT ? FROM t WHERE a = ? AND b = ?")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT @p0 FROM t WHERE a = @p1 AND b = @p2", out)
}

func TestNamedPlaceholders_NoPlaceholdersUnchanged(t *testing.T) {
	p := namedPlaceholders{prefix: "@"}
	out, err := p.ReplacePlaceholders("SELECT 1")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
}
