package memmetadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arllen133/dsqlengine"
)

func TestCatalog_GetReturnsRegisteredMetadata(t *testing.T) {
	c := NewCatalog()
	c.Register(dsqlengine.ObjectMetadata{
		ObjectName: "Account",
		TableName:  "accounts",
		Fields: map[string]dsqlengine.FieldMetadata{
			"Name": {FieldName: "Name", ColumnName: "name", Selectivity: 0.3},
		},
	}, 42)

	meta, err := c.Get(context.Background(), "Account")
	require.NoError(t, err)
	assert.Equal(t, "accounts", meta.TableName)

	count, err := c.RowCount(context.Background(), "Account")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)

	sel, err := c.FieldSelectivity(context.Background(), "Account", "Name")
	require.NoError(t, err)
	assert.Equal(t, 0.3, sel)
}

func TestCatalog_UnknownObjectErrors(t *testing.T) {
	c := NewCatalog()
	_, err := c.Get(context.Background(), "Ghost")
	assert.Error(t, err)

	_, err = c.RowCount(context.Background(), "Ghost")
	assert.Error(t, err)

	_, err = c.FieldSelectivity(context.Background(), "Ghost", "Id")
	assert.Error(t, err)
}

func TestCatalog_UnknownFieldErrors(t *testing.T) {
	c := NewCatalog()
	c.Register(dsqlengine.ObjectMetadata{ObjectName: "Account", Fields: map[string]dsqlengine.FieldMetadata{}}, 1)

	_, err := c.FieldSelectivity(context.Background(), "Account", "Ghost")
	assert.Error(t, err)
}

func TestCatalog_RegisterReplacesExisting(t *testing.T) {
	c := NewCatalog()
	c.Register(dsqlengine.ObjectMetadata{ObjectName: "Account", TableName: "v1"}, 1)
	c.Register(dsqlengine.ObjectMetadata{ObjectName: "Account", TableName: "v2"}, 2)

	meta, err := c.Get(context.Background(), "Account")
	require.NoError(t, err)
	assert.Equal(t, "v2", meta.TableName)

	count, err := c.RowCount(context.Background(), "Account")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
