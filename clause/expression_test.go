package clause_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arllen133/dsqlengine/clause"
)

// mockQuoter is a bare Quoter used across these tests: no identifier
// quoting, ILIKE for the case-insensitive operator. Dialect-specific
// rendering (quoting, LIKE vs. ILIKE) is covered by the generator's own tests.
type mockQuoter struct{}

func (mockQuoter) QuoteIdentifier(name string) string { return name }
func (mockQuoter) CaseInsensitiveLikeOperator() string { return "ILIKE" }

func TestExpressions(t *testing.T) {
	q := mockQuoter{}

	tests := []struct {
		name     string
		expr     clause.Expression
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "Eq",
			expr:     clause.Eq{Column: clause.Column{Name: "name"}, Value: "alice"},
			wantSQL:  "name = ?",
			wantArgs: []any{"alice"},
		},
		{
			name:     "Gt",
			expr:     clause.Gt{Column: clause.Column{Name: "age"}, Value: 18},
			wantSQL:  "age > ?",
			wantArgs: []any{18},
		},
		{
			name:     "In",
			expr:     clause.IN{Column: clause.Column{Name: "status"}, Values: []any{"active", "pending"}},
			wantSQL:  "status IN (?, ?)",
			wantArgs: []any{"active", "pending"},
		},
		{
			name:     "In Empty",
			expr:     clause.IN{Column: clause.Column{Name: "status"}, Values: []any{}},
			wantSQL:  "1 = 0",
			wantArgs: nil,
		},
		{
			name:     "NotIn Empty",
			expr:     clause.NotIn{Column: clause.Column{Name: "status"}, Values: []any{}},
			wantSQL:  "1 = 1",
			wantArgs: nil,
		},
		{
			name: "And",
			expr: clause.And{
				clause.Gt{Column: clause.Column{Name: "age"}, Value: 18},
				clause.Eq{Column: clause.Column{Name: "status"}, Value: "active"},
			},
			wantSQL:  "(age > ?) AND (status = ?)",
			wantArgs: []any{18, "active"},
		},
		{
			name: "Or",
			expr: clause.Or{
				clause.Eq{Column: clause.Column{Name: "role"}, Value: "admin"},
				clause.Eq{Column: clause.Column{Name: "role"}, Value: "moderator"},
			},
			wantSQL:  "(role = ?) OR (role = ?)",
			wantArgs: []any{"admin", "moderator"},
		},
		{
			name: "Nested Logic",
			expr: clause.Or{
				clause.And{
					clause.Gt{Column: clause.Column{Name: "age"}, Value: 18},
					clause.Eq{Column: clause.Column{Name: "status"}, Value: "active"},
				},
				clause.Eq{Column: clause.Column{Name: "role"}, Value: "admin"},
			},
			wantSQL:  "((age > ?) AND (status = ?)) OR (role = ?)",
			wantArgs: []any{18, "active", "admin"},
		},
		{
			name:     "Column With Table",
			expr:     clause.Eq{Column: clause.Column{Table: "t1", Name: "email"}, Value: "test@example.com"},
			wantSQL:  "t1.email = ?",
			wantArgs: []any{"test@example.com"},
		},
		{
			name:     "Like",
			expr:     clause.Like{Column: clause.Column{Name: "title"}, Value: "golang"},
			wantSQL:  "title LIKE ?",
			wantArgs: []any{"golang"},
		},
		{
			name:     "Like Case Insensitive",
			expr:     clause.Like{Column: clause.Column{Name: "title"}, Value: "golang", CaseInsensitive: true},
			wantSQL:  "title ILIKE ?",
			wantArgs: []any{"golang"},
		},
		{
			name:     "IsNull",
			expr:     clause.IsNull{Column: clause.Column{Name: "deleted_at"}},
			wantSQL:  "deleted_at IS NULL",
			wantArgs: nil,
		},
		{
			name: "InSubquery",
			expr: clause.InSubquery{
				Column:       clause.Column{Name: "id"},
				SubquerySQL:  "SELECT id FROM accounts WHERE tier = ?",
				SubqueryArgs: []any{"gold"},
			},
			wantSQL:  "id IN (SELECT id FROM accounts WHERE tier = ?)",
			wantArgs: []any{"gold"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs := tt.expr.Build(q)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}
