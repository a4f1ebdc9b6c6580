package dsqlengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accountMeta(hasRLS bool) ObjectMetadata {
	return ObjectMetadata{
		ObjectName: "Account",
		HasRLS:     hasRLS,
		Fields: map[string]FieldMetadata{
			"OwnerId": {FieldName: "OwnerId", ColumnName: "owner_id"},
		},
	}
}

func TestEnforcer_AdminBypassesRLS(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(true)}
	e := NewEnforcer(meta, DefaultPolicies())

	q := &Query{FromObject: "Account", Fields: []Field{{Name: "Id"}}}
	sc := NewSecurityContext("admin-user", "SystemAdministrator")

	out, err := e.Apply(context.Background(), q, sc)
	require.NoError(t, err)
	assert.Nil(t, out.Where)
	assert.Same(t, q, out)
}

func TestEnforcer_ObjectWithoutRLSIsUntouched(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(false)}
	e := NewEnforcer(meta, DefaultPolicies())

	q := &Query{FromObject: "Account", Fields: []Field{{Name: "Id"}}}
	sc := NewSecurityContext("regular-user")

	out, err := e.Apply(context.Background(), q, sc)
	require.NoError(t, err)
	assert.Nil(t, out.Where)
}

func TestEnforcer_OwnerBasedAndsOwnerPredicate(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(true)}
	e := NewEnforcer(meta, []Policy{OwnerBased{}})

	q := &Query{FromObject: "Account", Fields: []Field{{Name: "Id"}}}
	sc := NewSecurityContext("user-1")

	out, err := e.Apply(context.Background(), q, sc)
	require.NoError(t, err)
	require.NotNil(t, out.Where)
	assert.True(t, out.Where.IsLeaf())
	assert.Equal(t, FieldName("OwnerId"), out.Where.Field)
	assert.Equal(t, "user-1", out.Where.Value)
}

func TestEnforcer_NoApplicablePolicyForcesUnsatisfiablePredicate(t *testing.T) {
	meta := inMemoryMetadata{"Account": {
		ObjectName: "Account",
		HasRLS:     true,
		Fields:     map[string]FieldMetadata{}, // no OwnerId field: OwnerBased not applicable
	}}
	e := NewEnforcer(meta, DefaultPolicies())

	q := &Query{FromObject: "Account", Fields: []Field{{Name: "Id"}}}
	sc := NewSecurityContext("user-1")

	out, err := e.Apply(context.Background(), q, sc)
	require.NoError(t, err)
	require.NotNil(t, out.Where)
	assert.True(t, out.Where.IsLeaf())
	assert.Equal(t, FieldName("1"), out.Where.Field)
	assert.Equal(t, int64(0), out.Where.Value)
}

func TestEnforcer_ExistingWhereIsPreservedAndAnded(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(true)}
	e := NewEnforcer(meta, []Policy{OwnerBased{}})

	q := &Query{
		FromObject: "Account",
		Fields:     []Field{{Name: "Id"}},
		Where:      &Condition{Field: "Industry", Op: OpEq, Value: "Tech"},
	}
	sc := NewSecurityContext("user-1")

	out, err := e.Apply(context.Background(), q, sc)
	require.NoError(t, err)
	require.False(t, out.Where.IsLeaf())
	assert.Equal(t, LogicalAnd, out.Where.Logical)
	assert.Equal(t, FieldName("Industry"), out.Where.Left.Field)
	assert.Equal(t, FieldName("OwnerId"), out.Where.Right.Field)

	// The original tree must be untouched.
	assert.True(t, q.Where.IsLeaf())
}

func TestEnforcer_SharingBasedBuildsOwnerOrSharedInSubquery(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(true)}
	policies := []Policy{SharingBased{}}
	e := NewEnforcer(meta, policies)

	q := &Query{FromObject: "Account", Fields: []Field{{Name: "Id"}}}
	sc := NewSecurityContext("u2")

	out, err := e.Apply(context.Background(), q, sc)
	require.NoError(t, err)
	require.NotNil(t, out.Where)
	require.False(t, out.Where.IsLeaf())
	assert.Equal(t, LogicalOr, out.Where.Logical)

	owner := out.Where.Left
	assert.Equal(t, FieldName("OwnerId"), owner.Field)
	assert.Equal(t, OpEq, owner.Op)
	assert.Equal(t, "u2", owner.Value)

	shared := out.Where.Right
	assert.Equal(t, FieldName("Id"), shared.Field)
	assert.Equal(t, OpIn, shared.Op)
	require.NotNil(t, shared.Subquery)
	assert.Equal(t, "Share", shared.Subquery.FromObject)
	require.Len(t, shared.Subquery.Fields, 1)
	assert.Equal(t, FieldName("record_id"), shared.Subquery.Fields[0].Name)
	require.NotNil(t, shared.Subquery.Where)
	assert.Equal(t, FieldName("user_or_group_id"), shared.Subquery.Where.Field)
	assert.Equal(t, "u2", shared.Subquery.Where.Value)
}

func TestEnforcer_ValidateRecordAccess(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(true)}
	e := NewEnforcer(meta, DefaultPolicies())

	sc := NewSecurityContext("user-1")
	ok, err := e.ValidateRecordAccess(context.Background(), "Account", map[string]any{"OwnerId": "user-1"}, AccessRead, sc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.ValidateRecordAccess(context.Background(), "Account", map[string]any{"OwnerId": "someone-else"}, AccessRead, sc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnforcer_ValidateRecordAccess_AdminAlwaysPasses(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(true)}
	e := NewEnforcer(meta, DefaultPolicies())

	sc := NewSecurityContext("admin", "SystemAdministrator")
	ok, err := e.ValidateRecordAccess(context.Background(), "Account", map[string]any{"OwnerId": "someone-else"}, AccessRead, sc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnforcer_HierarchyBasedBuildsSubordinateSubquery(t *testing.T) {
	meta := inMemoryMetadata{"Account": accountMeta(true)}
	policies := []Policy{HierarchyBased{}}
	e := NewEnforcer(meta, policies)

	q := &Query{FromObject: "Account", Fields: []Field{{Name: "Id"}}}
	sc := NewSecurityContext("manager-1")

	out, err := e.Apply(context.Background(), q, sc)
	require.NoError(t, err)
	require.True(t, out.Where.IsLeaf())
	assert.Equal(t, FieldName("OwnerId"), out.Where.Field)
	assert.Equal(t, OpIn, out.Where.Op)

	require.NotNil(t, out.Where.Subquery)
	assert.Equal(t, "UserRoleHierarchy", out.Where.Subquery.FromObject)
	require.Len(t, out.Where.Subquery.Fields, 1)
	assert.Equal(t, FieldName("subordinate_user_id"), out.Where.Subquery.Fields[0].Name)
	require.NotNil(t, out.Where.Subquery.Where)
	assert.Equal(t, FieldName("supervisor_user_id"), out.Where.Subquery.Where.Field)
	assert.Equal(t, "manager-1", out.Where.Subquery.Where.Value)
}
