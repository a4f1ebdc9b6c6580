package dsqlengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/exp/maps"
)

// This file implements the cost-based optimizer (spec §4.3): cardinality
// estimation, join reordering, index selection, and execution-strategy
// flags, compiled into an immutable Plan. Optimization never fails the
// query: an internal error (an unresolvable cardinality source, most
// commonly) is caught and the optimizer falls back to an unoptimized plan
// rather than propagating an OptimizerError to the caller (spec §7).

// Plan is the immutable, fully-costed output of optimization (spec §3). A
// Plan never shares structure with the Query it was built from besides
// read-only references; the generator treats it as the single source of
// truth for SQL shape.
type Plan struct {
	Query               *Query
	BaseCardinality     int64
	FilteredCardinality int64
	JoinOrder           []Join
	SelectedIndexes     []string
	UseParallel         bool
	ParallelDegree      int
	UseHashAggregation  bool
	UseStreaming        bool
	EstimatedCost       float64
	PlanID              string
}

const (
	maxJoinsForDP     = 6
	defaultIndexes    = 3
	parallelRowFloor  = 10_000
	maxParallelDegree = 8
)

// Optimizer turns a (post-RLS) Query into a costed Plan.
type Optimizer struct {
	statistics StatisticsProvider
	metadata   MetadataProvider
}

// NewOptimizer builds an Optimizer backed by the given statistics and
// metadata providers.
func NewOptimizer(statistics StatisticsProvider, metadata MetadataProvider) *Optimizer {
	return &Optimizer{statistics: statistics, metadata: metadata}
}

// Optimize builds a Plan for q. It never returns an error to the caller: on
// internal failure (statistics unavailable, etc.) it logs nothing itself —
// callers that want visibility should wrap this with the Engine's
// observability layer — and instead returns the cheapest plan it can still
// construct, an unordered join sequence with no index selection.
func (o *Optimizer) Optimize(ctx context.Context, q *Query, includeRLS bool, sc SecurityContext) *Plan {
	plan, err := o.optimize(ctx, q)
	if err != nil {
		plan = o.fallbackPlan(q)
	}
	plan.PlanID = computePlanID(q, includeRLS, sc)
	return plan
}

func (o *Optimizer) optimize(ctx context.Context, q *Query) (*Plan, error) {
	baseCard, err := o.statistics.RowCount(ctx, q.FromObject)
	if err != nil {
		return nil, &OptimizerError{Reason: fmt.Sprintf("no cardinality source for %q: %v", q.FromObject, err)}
	}

	selectivity := o.estimateSelectivity(ctx, q.FromObject, q.Where)
	filteredCard := int64(math.Ceil(float64(baseCard) * selectivity))

	joins := o.estimateJoinCardinalities(ctx, q.Joins)
	order := o.reorderJoins(joins)

	indexes := o.selectIndexes(ctx, q)

	useParallel, degree := o.parallelStrategy(filteredCard, len(order))
	useHash := q.IsAggregateQuery()
	useStreaming := q.Limit == nil && !useHash

	cost := estimateCost(filteredCard, order, useParallel, degree)

	return &Plan{
		Query:               q,
		BaseCardinality:     baseCard,
		FilteredCardinality: filteredCard,
		JoinOrder:           order,
		SelectedIndexes:     indexes,
		UseParallel:         useParallel,
		ParallelDegree:      degree,
		UseHashAggregation:  useHash,
		UseStreaming:        useStreaming,
		EstimatedCost:       cost,
	}, nil
}

// fallbackPlan builds the degenerate plan used when cost estimation fails:
// original join order, no index selection, no parallelism.
func (o *Optimizer) fallbackPlan(q *Query) *Plan {
	return &Plan{
		Query:               q,
		BaseCardinality:     0,
		FilteredCardinality: 0,
		JoinOrder:           append([]Join(nil), q.Joins...),
		SelectedIndexes:     nil,
		UseParallel:         false,
		ParallelDegree:      1,
		UseHashAggregation:  q.IsAggregateQuery(),
		UseStreaming:        q.Limit == nil,
		EstimatedCost:       math.Inf(1),
	}
}

// estimateSelectivity recurses over a condition tree, combining leaf
// selectivities: AND multiplies (assumes independence), OR uses the
// inclusion-exclusion complement (1 - product of complements), matching
// the standard cost-estimation treatment of predicate combinators.
func (o *Optimizer) estimateSelectivity(ctx context.Context, object string, c *Condition) float64 {
	if c == nil {
		return 1.0
	}
	if c.IsLeaf() {
		return o.leafSelectivity(ctx, object, c)
	}

	left := o.estimateSelectivity(ctx, object, c.Left)
	right := o.estimateSelectivity(ctx, object, c.Right)
	if c.Logical == LogicalAnd {
		return left * right
	}
	return 1 - (1-left)*(1-right)
}

func (o *Optimizer) leafSelectivity(ctx context.Context, object string, c *Condition) float64 {
	switch c.Op {
	case OpIsNull:
		if o.fieldNullable(ctx, object, string(c.Field)) {
			return 0.1
		}
		return 0
	case OpIsNotNull:
		if o.fieldNullable(ctx, object, string(c.Field)) {
			return 0.9
		}
		return 1
	case OpIn, OpNotIn:
		values, _ := c.Value.([]any)
		base := o.fieldSelectivity(ctx, object, string(c.Field))
		n := float64(len(values))
		est := base * n
		if est > 0.5 {
			est = 0.5
		}
		if c.Op == OpNotIn {
			return 1 - est
		}
		return est
	case OpEq:
		return o.fieldSelectivity(ctx, object, string(c.Field))
	case OpNeq:
		return 1 - o.fieldSelectivity(ctx, object, string(c.Field))
	case OpLike:
		return 0.1
	case OpContains:
		return 0.05
	case OpStartsWith, OpEndsWith:
		return 0.1
	default: // <, <=, >, >=
		return 0.33
	}
}

// fieldNullable reports whether field's metadata marks it nullable, used to
// pick the IS NULL/IS NOT NULL selectivity constants (spec §4.3). Dotted
// (joined) references fall back to nullable=true, the more conservative of
// the two IS NULL estimates, since the target object's metadata isn't
// available from here.
func (o *Optimizer) fieldNullable(ctx context.Context, object, field string) bool {
	_, _, dotted := splitDottedForStats(field)
	if dotted {
		return true
	}
	meta, err := o.metadata.Get(ctx, object)
	if err != nil {
		return true
	}
	fm, ok := meta.Fields[field]
	if !ok {
		return true
	}
	return fm.Nullable
}

func (o *Optimizer) fieldSelectivity(ctx context.Context, object, field string) float64 {
	baseField, _, dotted := splitDottedForStats(field)
	if dotted {
		// A dotted reference's selectivity belongs to the joined object's
		// field, not the base object's; fall back to a conservative
		// constant rather than guessing at which relationship it is.
		_ = baseField
		return 0.5
	}
	s, err := o.statistics.FieldSelectivity(ctx, object, field)
	if err != nil || s <= 0 || s > 1 {
		return 0.1
	}
	return s
}

func splitDottedForStats(field string) (relationship, leaf string, dotted bool) {
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			return field[:i], field[i+1:], true
		}
	}
	return "", field, false
}

// estimateJoinCardinalities annotates each Join with its estimated row
// count and selectivity, pulled from the statistics provider for the
// joined object.
func (o *Optimizer) estimateJoinCardinalities(ctx context.Context, joins []Join) []Join {
	out := make([]Join, len(joins))
	for i, j := range joins {
		out[i] = j
		if rc, err := o.statistics.RowCount(ctx, j.TargetObject); err == nil {
			out[i].EstimatedRowCount = rc
		}
		if sel, err := o.statistics.FieldSelectivity(ctx, j.TargetObject, j.PrimaryKey); err == nil && sel > 0 && sel <= 1 {
			out[i].Selectivity = sel
		} else {
			out[i].Selectivity = 0.5
		}
	}
	return out
}

// reorderJoins picks the join order expected to minimize intermediate row
// counts. For up to maxJoinsForDP joins it runs an exact bitmask dynamic
// program over all subsets/orderings; above that it falls back to a greedy
// smallest-estimated-row-count-first heuristic, since the DP's
// 2^n * n state space stops being worth it (spec §4.3).
func (o *Optimizer) reorderJoins(joins []Join) []Join {
	if len(joins) <= 1 {
		return joins
	}
	if len(joins) <= maxJoinsForDP {
		return reorderJoinsDP(joins)
	}
	return reorderJoinsGreedy(joins)
}

// reorderJoinsDP finds the ordering minimizing cumulative estimated cost
// via a bitmask DP: dp[mask] is the minimum cost to join the set of joins
// in mask, in some order, and parent[mask]/lastJoin[mask] record the step
// achieving it, from which the order is walked back.
func reorderJoinsDP(joins []Join) []Join {
	n := len(joins)
	full := 1 << n

	dp := make([]float64, full)
	parent := make([]int, full)
	lastJoin := make([]int, full)
	for i := range dp {
		dp[i] = math.Inf(1)
		parent[i] = -1
	}
	dp[0] = 0

	for mask := 0; mask < full; mask++ {
		if math.IsInf(dp[mask], 1) {
			continue
		}
		runningRows := joinSetRows(joins, mask)
		for i := 0; i < n; i++ {
			bit := 1 << i
			if mask&bit != 0 {
				continue
			}
			next := mask | bit
			stepCost := float64(runningRows) * joins[i].Selectivity * float64(joins[i].EstimatedRowCount+1)
			candidate := dp[mask] + stepCost
			if candidate < dp[next] {
				dp[next] = candidate
				parent[next] = mask
				lastJoin[next] = i
			}
		}
	}

	order := make([]Join, n)
	mask := full - 1
	for i := n - 1; i >= 0; i-- {
		j := lastJoin[mask]
		order[i] = joins[j]
		mask = parent[mask]
	}
	return order
}

// joinSetRows estimates the running row count after joining the set
// described by mask, used as the DP's per-step base for the next join's
// cost. golang.org/x/exp/maps.Values iterates in no fixed order, but the
// result is a product of the values and so does not depend on that order.
func joinSetRows(joins []Join, mask int) int64 {
	if mask == 0 {
		return 1
	}
	seen := make(map[int]int64)
	for i, j := range joins {
		if mask&(1<<i) != 0 {
			seen[i] = j.EstimatedRowCount
		}
	}
	var total int64 = 1
	for _, v := range maps.Values(seen) {
		if v > 0 {
			total *= v
		}
	}
	return total
}

// reorderJoinsGreedy orders joins by ascending estimated row count, ties
// broken by ascending selectivity, used once the join count exceeds the
// DP's practical size.
func reorderJoinsGreedy(joins []Join) []Join {
	order := append([]Join(nil), joins...)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].EstimatedRowCount != order[j].EstimatedRowCount {
			return order[i].EstimatedRowCount < order[j].EstimatedRowCount
		}
		return order[i].Selectivity < order[j].Selectivity
	})
	return order
}

// selectIndexes scores each indexed field referenced by the query's
// WHERE/ORDER BY/GROUP BY against its selectivity and returns the top three
// candidates, most selective first (spec §4.3).
func (o *Optimizer) selectIndexes(ctx context.Context, q *Query) []string {
	meta, err := o.metadata.Get(ctx, q.FromObject)
	if err != nil {
		return nil
	}

	referenced := make(map[string]bool)
	collectReferencedFields(q.Where, referenced)
	for _, f := range q.GroupBy {
		referenced[string(f)] = true
	}
	for _, f := range q.OrderBy {
		referenced[string(f.Field)] = true
	}

	type candidate struct {
		field       string
		selectivity float64
	}
	var candidates []candidate
	for field := range referenced {
		fm, ok := meta.Fields[field]
		if !ok || !fm.Indexed {
			continue
		}
		candidates = append(candidates, candidate{field: field, selectivity: fm.Selectivity})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].selectivity < candidates[j].selectivity
	})

	limit := defaultIndexes
	if len(candidates) < limit {
		limit = len(candidates)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = candidates[i].field
	}
	return out
}

func collectReferencedFields(c *Condition, out map[string]bool) {
	if c == nil {
		return
	}
	if c.IsLeaf() {
		if c.Field != "" && c.Field != "1" {
			out[string(c.Field)] = true
		}
		return
	}
	collectReferencedFields(c.Left, out)
	collectReferencedFields(c.Right, out)
}

// parallelStrategy decides whether the plan should request parallel
// execution from the driver, and at what degree, based on the filtered
// cardinality (spec §4.3).
func (o *Optimizer) parallelStrategy(filteredCard int64, joinCount int) (bool, int) {
	if filteredCard < parallelRowFloor {
		return false, 1
	}
	degree := int(filteredCard / parallelRowFloor)
	if degree < 2 {
		degree = 2
	}
	if degree > maxParallelDegree {
		degree = maxParallelDegree
	}
	if joinCount > 0 && degree > maxParallelDegree/2 {
		degree = maxParallelDegree / 2
	}
	return true, degree
}

// estimateCost combines filtered cardinality and per-join cost into a
// single comparable number. It is not calibrated to any real execution
// engine's actual cost units — its only job is to be monotonic in the
// inputs so join reordering and plan comparison behave sensibly.
func estimateCost(filteredCard int64, joins []Join, useParallel bool, degree int) float64 {
	cost := float64(filteredCard)
	for _, j := range joins {
		cost += float64(j.EstimatedRowCount) * j.Selectivity
	}
	if useParallel && degree > 0 {
		cost = cost / float64(degree)
	}
	return cost
}

// computePlanID derives a deterministic identity for (query shape,
// optional security context) so the plan cache can key on it directly
// (spec §4.4, Hash stability law in §8). IN-lists are sorted before
// hashing so equivalent queries differing only in literal order collide.
// ComputePlanID exposes computePlanID so the Engine can derive the plan
// cache (and, per spec §4.5, result cache) key before deciding whether to
// run the optimizer at all.
func ComputePlanID(q *Query, includeRLS bool, sc SecurityContext) string {
	return computePlanID(q, includeRLS, sc)
}

func computePlanID(q *Query, includeRLS bool, sc SecurityContext) string {
	h := sha256.New()
	writeQueryShape(h, q)
	if includeRLS {
		fmt.Fprintf(h, "|rls:%s", sc.UserID)
		roles := maps.Keys(sc.Roles)
		sort.Strings(roles)
		fmt.Fprintf(h, "|roles:%s", strings.Join(roles, ","))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeQueryShape(h interface{ Write([]byte) (int, error) }, q *Query) {
	fmt.Fprintf(h, "from:%s|", q.FromObject)
	for _, f := range q.Fields {
		fmt.Fprintf(h, "field:%s:%s:%s|", f.Name, f.AggregateFn, f.AggregateArg)
		if f.Subquery != nil {
			writeQueryShape(h, f.Subquery)
		}
	}
	writeCondition(h, q.Where)
	for _, o := range q.GroupBy {
		fmt.Fprintf(h, "group:%s|", o)
	}
	writeCondition(h, q.Having)
	for _, o := range q.OrderBy {
		fmt.Fprintf(h, "order:%s:%s:%s|", o.Field, o.Direction, o.Nulls)
	}
	if q.Limit != nil {
		fmt.Fprintf(h, "limit:%d|", *q.Limit)
	}
	if q.Offset != nil {
		fmt.Fprintf(h, "offset:%d|", *q.Offset)
	}
	for _, j := range q.Joins {
		fmt.Fprintf(h, "join:%s:%s|", j.RelationshipName, j.Type)
	}
}

func writeCondition(h interface{ Write([]byte) (int, error) }, c *Condition) {
	if c == nil {
		return
	}
	if c.IsLeaf() {
		fmt.Fprintf(h, "cond:%s:%s:%s|", c.Field, c.Op, normalizeValueForHash(c.Value))
		if c.Subquery != nil {
			writeQueryShape(h, c.Subquery)
		}
		return
	}
	fmt.Fprintf(h, "logic:%s(", c.Logical)
	writeCondition(h, c.Left)
	writeCondition(h, c.Right)
	fmt.Fprint(h, ")")
}

// normalizeValueForHash renders a condition's value stably for hashing,
// sorting IN-list values so "IN (1,2,3)" and "IN (3,1,2)" hash identically.
func normalizeValueForHash(v any) string {
	if values, ok := v.([]any); ok {
		strs := make([]string, len(values))
		for i, val := range values {
			strs[i] = fmt.Sprintf("%v", val)
		}
		sort.Strings(strs)
		return strings.Join(strs, ",")
	}
	return fmt.Sprintf("%v", v)
}
