package driveradapter

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE accounts (id TEXT, name TEXT, owner_id TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO accounts (id, name, owner_id) VALUES
		('a1', 'Acme', 'u1'), ('a2', 'Globex', 'u2')`)
	require.NoError(t, err)
	return db
}

func TestSQLXDriver_ExecuteReturnsMappedRows(t *testing.T) {
	db := newTestDB(t)
	driver := New(db)

	rows, err := driver.Execute(context.Background(), "SELECT id, name FROM accounts WHERE owner_id = @p0", map[string]any{"p0": "u1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0]["id"])
	assert.Equal(t, "Acme", rows[0]["name"])
}

func TestSQLXDriver_MultipleParamsBindInDeclarationOrder(t *testing.T) {
	db := newTestDB(t)
	driver := New(db)

	rows, err := driver.Execute(context.Background(), "SELECT id FROM accounts WHERE owner_id = @p0 OR owner_id = @p1", map[string]any{
		"p1": "u2",
		"p0": "u1",
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSQLXDriver_NoMatchesReturnsEmptyNotError(t *testing.T) {
	db := newTestDB(t)
	driver := New(db)

	rows, err := driver.Execute(context.Background(), "SELECT id FROM accounts WHERE owner_id = @p0", map[string]any{"p0": "ghost"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLXDriver_InvalidSQLReturnsError(t *testing.T) {
	db := newTestDB(t)
	driver := New(db)

	_, err := driver.Execute(context.Background(), "SELECT * FROM not_a_table", nil)
	assert.Error(t, err)
}

func TestParamIndex(t *testing.T) {
	assert.Equal(t, 0, paramIndex("p0"))
	assert.Equal(t, 12, paramIndex("p12"))
	assert.Equal(t, -1, paramIndex("bogus"))
	assert.Equal(t, -1, paramIndex("p"))
}
