package dsqlengine

import "context"

// SecurityContext accompanies a single query execution (spec §3). It is
// never shared implicitly across concurrent executions — the Engine obtains
// one per call from its SecurityProvider and passes it explicitly through
// the pipeline, rather than the core reaching for ambient/global state.
type SecurityContext struct {
	UserID       string
	Roles        map[string]struct{}
	Permissions  map[string]struct{}
	TerritoryIDs []string
	Custom       map[string]any
}

// HasRole reports whether the context carries the given role.
func (c SecurityContext) HasRole(role string) bool {
	_, ok := c.Roles[role]
	return ok
}

// IsSystemAdministrator is the admin-bypass check used by the RLS enforcer
// (spec §4.2, Admin bypass law in §8).
func (c SecurityContext) IsSystemAdministrator() bool {
	return c.HasRole("SystemAdministrator")
}

// NewSecurityContext builds a context from a user id and role list; the
// zero-value Permissions/TerritoryIDs/Custom are safe to use as-is.
func NewSecurityContext(userID string, roles ...string) SecurityContext {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}
	return SecurityContext{UserID: userID, Roles: roleSet}
}

// SecurityProvider yields the security context for the current logical
// call. The core never assumes a single process-wide context (spec §5,
// §9) — each query execution receives the context returned for that
// specific call.
type SecurityProvider interface {
	Current(ctx context.Context) (SecurityContext, error)
}

// StaticSecurityProvider is a SecurityProvider that always returns the same
// context, useful for tests and single-tenant demo wiring.
type StaticSecurityProvider struct {
	Context SecurityContext
}

func (p StaticSecurityProvider) Current(ctx context.Context) (SecurityContext, error) {
	return p.Context, nil
}
