package dsqlengine

import "context"

// This file implements row-level security (spec §4.2). RLS is enforced by
// rewriting the query tree, not by post-filtering result rows: Apply ANDs a
// synthesized predicate onto the existing Where before the query ever
// reaches the optimizer, so the database itself excludes rows the caller
// cannot see. Policy composition mirrors the RLS enforcer's counterpart in
// a typical ORM scope-chain — [[clause.And]]/[[clause.Or]]-style predicate
// composition built programmatically rather than by string concatenation.

// AccessType distinguishes the operation ValidateRecordAccess is checking.
type AccessType string

const (
	AccessRead   AccessType = "read"
	AccessWrite  AccessType = "write"
	AccessDelete AccessType = "delete"
)

// Policy is one row-level security rule. Applicable reports whether the
// policy applies at all to this object/context pair (e.g. SharingBased
// policies might not apply to objects with no sharing model configured);
// Build produces the predicate that grants access under this policy.
// Multiple applicable policies on the same object are OR-combined (spec
// §4.2: "a record is visible if ANY applicable policy grants access").
type Policy interface {
	Name() string
	Applicable(meta ObjectMetadata, sc SecurityContext) bool
	Build(meta ObjectMetadata, sc SecurityContext) *Condition
}

// OwnerBased grants access to records owned by the current user, via an
// OwnerField column (conventionally "OwnerId").
type OwnerBased struct {
	OwnerField FieldName
}

func (p OwnerBased) Name() string { return "owner_based" }

func (p OwnerBased) Applicable(meta ObjectMetadata, sc SecurityContext) bool {
	field := p.ownerField()
	_, ok := meta.Fields[string(field)]
	return ok
}

func (p OwnerBased) Build(meta ObjectMetadata, sc SecurityContext) *Condition {
	return &Condition{Field: p.ownerField(), Op: OpEq, Value: sc.UserID}
}

func (p OwnerBased) ownerField() FieldName {
	if p.OwnerField == "" {
		return "OwnerId"
	}
	return p.OwnerField
}

// SharingBased grants access to records the user owns, or that have been
// explicitly shared with them via a Share record (spec §4.2):
// OwnerId = :current_user OR Id IN (SELECT record_id FROM Share WHERE
// user_or_group_id = :current_user).
type SharingBased struct {
	OwnerField    FieldName
	RecordIDField FieldName
}

func (p SharingBased) Name() string { return "sharing_based" }

func (p SharingBased) Applicable(meta ObjectMetadata, sc SecurityContext) bool {
	_, ok := meta.Fields[string(p.ownerField())]
	return ok
}

func (p SharingBased) Build(meta ObjectMetadata, sc SecurityContext) *Condition {
	owner := &Condition{Field: p.ownerField(), Op: OpEq, Value: sc.UserID}
	shared := &Condition{
		Field: p.recordIDField(),
		Op:    OpIn,
		Subquery: &Query{
			FromObject: "Share",
			Fields:     []Field{{Name: "record_id"}},
			Where:      &Condition{Field: "user_or_group_id", Op: OpEq, Value: sc.UserID},
		},
	}
	return Or(owner, shared)
}

func (p SharingBased) ownerField() FieldName {
	if p.OwnerField == "" {
		return "OwnerId"
	}
	return p.OwnerField
}

func (p SharingBased) recordIDField() FieldName {
	if p.RecordIDField == "" {
		return "Id"
	}
	return p.RecordIDField
}

// HierarchyBased grants access to records owned by anyone below the current
// user in a role hierarchy (spec §4.2): OwnerId IN (SELECT
// subordinate_user_id FROM UserRoleHierarchy WHERE supervisor_user_id =
// :current_user). The hierarchy table lives outside this package; the
// generator resolves it the same way it resolves any other subquery
// from_object, through the MetadataProvider.
type HierarchyBased struct {
	OwnerField FieldName
}

func (p HierarchyBased) Name() string { return "hierarchy_based" }

func (p HierarchyBased) Applicable(meta ObjectMetadata, sc SecurityContext) bool {
	_, ok := meta.Fields[string(p.ownerField())]
	return ok
}

func (p HierarchyBased) Build(meta ObjectMetadata, sc SecurityContext) *Condition {
	return &Condition{
		Field: p.ownerField(),
		Op:    OpIn,
		Subquery: &Query{
			FromObject: "UserRoleHierarchy",
			Fields:     []Field{{Name: "subordinate_user_id"}},
			Where:      &Condition{Field: "supervisor_user_id", Op: OpEq, Value: sc.UserID},
		},
	}
}

func (p HierarchyBased) ownerField() FieldName {
	if p.OwnerField == "" {
		return "OwnerId"
	}
	return p.OwnerField
}

// TerritoryBased grants access to records whose TerritoryField matches one
// of the user's assigned territories.
type TerritoryBased struct {
	TerritoryField FieldName
}

func (p TerritoryBased) Name() string { return "territory_based" }

func (p TerritoryBased) Applicable(meta ObjectMetadata, sc SecurityContext) bool {
	if len(sc.TerritoryIDs) == 0 {
		return false
	}
	_, ok := meta.Fields[string(p.territoryField())]
	return ok
}

func (p TerritoryBased) Build(meta ObjectMetadata, sc SecurityContext) *Condition {
	values := make([]any, len(sc.TerritoryIDs))
	for i, t := range sc.TerritoryIDs {
		values[i] = t
	}
	return &Condition{Field: p.territoryField(), Op: OpIn, Value: values}
}

func (p TerritoryBased) territoryField() FieldName {
	if p.TerritoryField == "" {
		return "TerritoryId"
	}
	return p.TerritoryField
}

// Custom adapts a caller-supplied predicate builder into a Policy, for
// domain-specific rules the four built-ins don't cover.
type Custom struct {
	PolicyName  string
	AppliesFunc func(meta ObjectMetadata, sc SecurityContext) bool
	BuildFunc   func(meta ObjectMetadata, sc SecurityContext) *Condition
}

func (p Custom) Name() string { return p.PolicyName }

func (p Custom) Applicable(meta ObjectMetadata, sc SecurityContext) bool {
	if p.AppliesFunc == nil {
		return true
	}
	return p.AppliesFunc(meta, sc)
}

func (p Custom) Build(meta ObjectMetadata, sc SecurityContext) *Condition {
	return p.BuildFunc(meta, sc)
}

// DefaultPolicies returns the four built-in policies in the order the
// enforcer tries them, each using the conventional field names (spec
// §4.2). Callers who need non-default field names construct their own
// policy set instead of calling this.
func DefaultPolicies() []Policy {
	return []Policy{
		OwnerBased{},
		SharingBased{},
		HierarchyBased{},
		TerritoryBased{},
	}
}

// Enforcer rewrites query trees to add row-level security and checks
// individual records against the same policy set outside of SQL
// generation (e.g. after a cache hit returns rows fetched under a
// different context).
type Enforcer struct {
	policies []Policy
	metadata MetadataProvider
}

// NewEnforcer builds an Enforcer over the given policy set. Pass
// DefaultPolicies() for the spec's built-in behavior.
func NewEnforcer(metadata MetadataProvider, policies []Policy) *Enforcer {
	return &Enforcer{metadata: metadata, policies: policies}
}

// Apply rewrites q's Where clause to add row-level security, returning a
// new Query (the input is never mutated, per the Clone note on Query).
// System administrators bypass RLS entirely (spec §8, Admin bypass law);
// objects with HasRLS == false are also left untouched. Otherwise every
// applicable policy's predicate is OR-combined and ANDed onto the existing
// Where.
func (e *Enforcer) Apply(ctx context.Context, q *Query, sc SecurityContext) (*Query, error) {
	if sc.IsSystemAdministrator() {
		return q, nil
	}

	meta, err := e.metadata.Get(ctx, q.FromObject)
	if err != nil {
		return nil, &MetadataError{Object: q.FromObject, Reason: err.Error()}
	}
	if !meta.HasRLS {
		return q, nil
	}

	var applicable []*Condition
	for _, policy := range e.policies {
		if policy.Applicable(meta, sc) {
			applicable = append(applicable, policy.Build(meta, sc))
		}
	}

	if len(applicable) == 0 {
		// No policy grants access: force an unsatisfiable predicate rather
		// than an empty Where, so the rewritten query returns zero rows
		// instead of silently reverting to "all rows visible".
		out := q.Clone()
		out.Where = And(out.Where, &Condition{Field: "1", Op: OpEq, Value: int64(0)})
		return out, nil
	}

	combined := Or(applicable...)
	out := q.Clone()
	out.Where = And(out.Where, combined)
	return out, nil
}

// ValidateRecordAccess checks a single already-fetched record (as a
// field-name -> value map) against the policy set, independent of SQL
// generation. This covers the case where rows were served from the result
// cache under one security context and must be re-checked for another
// (spec §4.2, §6). Admins and RLS-exempt objects always pass.
func (e *Enforcer) ValidateRecordAccess(ctx context.Context, objectName string, record map[string]any, accessType AccessType, sc SecurityContext) (bool, error) {
	if sc.IsSystemAdministrator() {
		return true, nil
	}

	meta, err := e.metadata.Get(ctx, objectName)
	if err != nil {
		return false, &MetadataError{Object: objectName, Reason: err.Error()}
	}
	if !meta.HasRLS {
		return true, nil
	}

	for _, policy := range e.policies {
		if !policy.Applicable(meta, sc) {
			continue
		}
		cond := policy.Build(meta, sc)
		if evaluateConditionAgainstRecord(cond, record) {
			return true, nil
		}
	}
	return false, nil
}

// evaluateConditionAgainstRecord interprets a Condition tree in-memory
// against a single record, mirroring the semantics the SQL generator would
// compile it to. Only the operators policies actually emit (=, IN) need
// support here; it is not a general expression evaluator.
func evaluateConditionAgainstRecord(c *Condition, record map[string]any) bool {
	if c == nil {
		return true
	}
	if !c.IsLeaf() {
		left := evaluateConditionAgainstRecord(c.Left, record)
		right := evaluateConditionAgainstRecord(c.Right, record)
		if c.Logical == LogicalAnd {
			return left && right
		}
		return left || right
	}

	if c.Field == "1" {
		if v, ok := c.Value.(int64); ok {
			return v == 1
		}
	}

	actual, present := record[string(c.Field)]
	switch c.Op {
	case OpEq:
		return present && actual == c.Value
	case OpIn:
		if c.Subquery != nil {
			// SharingBased/HierarchyBased compile to a correlated subquery
			// against Share/UserRoleHierarchy; record-level validation has
			// no database access to run it against, so it never grants
			// access on this branch alone. Callers needing an authoritative
			// answer for shared/hierarchy visibility should re-run
			// Apply+Query rather than trust a cached record.
			return false
		}
		values, _ := c.Value.([]any)
		for _, v := range values {
			if present && actual == v {
				return true
			}
		}
		return false
	default:
		return false
	}
}
