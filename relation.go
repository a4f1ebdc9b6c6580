package dsqlengine

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"
)

// This file implements the "child selects" relationship loading strategy
// named in spec §5, where each relationship is fetched as its own query
// against the driver, all concurrently, and merged onto the parent rows
// afterward by matching foreign key to primary key. The Engine only takes
// this path when WithRelationshipLoadingStrategy(true) is set, and then in
// addition to the joins compiled into the main SELECT (generator.go), which
// it does not replace; by default only that joined SELECT runs.

// relationshipLoader fetches relationship rows independently and attaches
// them to their parent rows. Degree bounds the number of relationships
// fetched at once; a failure in any branch cancels the others and fails the
// whole load — partial success is never reported (spec §5).
type relationshipLoader struct {
	driver   Driver
	dialect  Dialect
	metadata MetadataProvider
	degree   int
}

func newRelationshipLoader(driver Driver, dialect Dialect, metadata MetadataProvider, degree int) *relationshipLoader {
	if degree < 1 {
		degree = 1
	}
	return &relationshipLoader{driver: driver, dialect: dialect, metadata: metadata, degree: degree}
}

// Load fetches and attaches every relationship in joins onto parents. Each
// parent row gains a key named after the relationship, holding the slice of
// matching child rows (empty slice, not absent, when none match).
func (l *relationshipLoader) Load(ctx context.Context, joins []Join, parents Rows) error {
	if len(joins) == 0 || len(parents) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.degree)

	childRows := make([]Rows, len(joins))
	for i, j := range joins {
		i, j := i, j
		g.Go(func() error {
			ids := collectDistinctForeignKeys(parents, string(j.ForeignKey))
			if len(ids) == 0 {
				childRows[i] = Rows{}
				return nil
			}
			sqlText, params, err := l.buildFetch(gctx, j, ids)
			if err != nil {
				return fmt.Errorf("dsqlengine: loading relationship %q: %w", j.RelationshipName, err)
			}
			rows, err := l.driver.Execute(gctx, sqlText, params)
			if err != nil {
				return fmt.Errorf("dsqlengine: loading relationship %q: %w", j.RelationshipName, err)
			}
			childRows[i] = rows
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i, j := range joins {
		attachRelationship(parents, childRows[i], j)
	}
	return nil
}

// buildFetch compiles "SELECT * FROM <target> WHERE <pk> IN (ids)" for one
// relationship, through squirrel so dialect quoting and placeholder
// spelling match the generator's own output exactly.
func (l *relationshipLoader) buildFetch(ctx context.Context, j Join, ids []any) (string, map[string]any, error) {
	targetMeta, err := l.metadata.Get(ctx, j.TargetObject)
	if err != nil {
		return "", nil, &MetadataError{Object: j.TargetObject, Reason: err.Error()}
	}

	pkColumn := string(j.PrimaryKey)
	if fm, ok := targetMeta.Fields[string(j.PrimaryKey)]; ok {
		pkColumn = fm.ColumnName
	}

	builder := sq.Select("*").
		From(l.dialect.QuoteIdentifier(targetMeta.TableName)).
		Where(sq.Eq{l.dialect.QuoteIdentifier(pkColumn): ids})

	sqlText, args, err := builder.ToSql()
	if err != nil {
		return "", nil, err
	}

	rewritten, err := l.dialect.PlaceholderFormat().ReplacePlaceholders(sqlText)
	if err != nil {
		return "", nil, err
	}

	params := make(map[string]any, len(args))
	for i, a := range args {
		params[fmt.Sprintf("p%d", i)] = a
	}
	return rewritten, params, nil
}

// collectDistinctForeignKeys gathers the distinct non-nil values of field
// across parents, preserving first-seen order for deterministic IN lists.
func collectDistinctForeignKeys(parents Rows, field string) []any {
	seen := make(map[any]bool)
	var ids []any
	for _, row := range parents {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		ids = append(ids, v)
	}
	return ids
}

// attachRelationship merges children onto parents, grouping children by
// their primary key value and attaching the matching group under
// j.RelationshipName on every parent whose foreign key value matches.
func attachRelationship(parents Rows, children Rows, j Join) {
	byKey := make(map[any][]map[string]any)
	pkField := string(j.PrimaryKey)
	for _, child := range children {
		key, ok := child[pkField]
		if !ok {
			continue
		}
		byKey[key] = append(byKey[key], child)
	}

	fkField := string(j.ForeignKey)
	for _, parent := range parents {
		fk, ok := parent[fkField]
		if !ok || fk == nil {
			parent[j.RelationshipName] = []map[string]any{}
			continue
		}
		parent[j.RelationshipName] = byKey[fk]
	}
}
