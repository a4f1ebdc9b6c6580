package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	RowCount int64  `db:"row_count"`
	Ignored  string `db:"-"`
	NoTag    string
}

func TestInto_MapsTaggedAndFallbackFields(t *testing.T) {
	rows := []map[string]any{
		{"id": "a1", "name": "Acme", "row_count": int64(3), "notag": "x"},
		{"id": "a2", "name": "Globex", "row_count": int64(7)},
	}

	out, err := Into[account](rows)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "a1", out[0].ID)
	assert.Equal(t, "Acme", out[0].Name)
	assert.Equal(t, int64(3), out[0].RowCount)
	assert.Equal(t, "x", out[0].NoTag)

	assert.Equal(t, "a2", out[1].ID)
	assert.Equal(t, int64(7), out[1].RowCount)
}

func TestInto_DashTagSkipsField(t *testing.T) {
	rows := []map[string]any{{"id": "a1", "ignored": "should not map"}}
	out, err := Into[account](rows)
	require.NoError(t, err)
	assert.Empty(t, out[0].Ignored)
}

func TestInto_MissingOrNilColumnLeavesZeroValue(t *testing.T) {
	rows := []map[string]any{{"id": "a1", "row_count": nil}}
	out, err := Into[account](rows)
	require.NoError(t, err)
	assert.Equal(t, int64(0), out[0].RowCount)
}

func TestInto_ConvertibleTypeIsCoerced(t *testing.T) {
	type counter struct {
		Count int `db:"count"`
	}
	rows := []map[string]any{{"count": int64(42)}}
	out, err := Into[counter](rows)
	require.NoError(t, err)
	assert.Equal(t, 42, out[0].Count)
}

func TestInto_EmptyRowsReturnsEmptySlice(t *testing.T) {
	out, err := Into[account](nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestInto_NonStructTypeErrors(t *testing.T) {
	_, err := Into[string]([]map[string]any{{"x": "y"}})
	assert.Error(t, err)
}
