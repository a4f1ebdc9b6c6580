package dsqlengine

import (
	"context"
	"fmt"
	"time"

	"github.com/arllen133/dsqlengine/mapper"
)

// Driver is the out-of-scope physical database collaborator the Engine
// consumes (spec §6). It substitutes params into the generated SQL and
// returns rows as plain maps — the core never depends on per-model structs.
type Driver interface {
	Execute(ctx context.Context, sql string, params map[string]any) (Rows, error)
}

// Rows is a finite, already-materialized sequence of result rows.
type Rows = []map[string]any

// EngineOption configures an Engine at construction time, following the
// teacher's SessionOption functional-options pattern.
type EngineOption func(*Engine)

// Engine is the public surface wiring parser -> RLS enforcer -> plan cache
// -> optimizer -> SQL generator -> driver -> result cache (spec §2, §6).
type Engine struct {
	parser    *Parser
	enforcer  *Enforcer
	optimizer *Optimizer
	generator *Generator
	dialect   Dialect
	metadata  MetadataProvider
	security  SecurityProvider
	driver    Driver

	planCache   *Cache[*Plan]
	resultCache *Cache[Rows]

	enableRLS                 bool
	enablePlanCache           bool
	enableResultCache         bool
	planCacheSize             int
	planCacheTTL              time.Duration
	resultCacheSize           int
	resultCacheTTL            time.Duration
	maxResultCacheSize        int
	enableParallel            bool
	maxParallelDegree         int
	useRelationshipLoading    bool
	relationshipLoadingDegree int

	obs *ObservabilityConfig
}

const (
	defaultPlanCacheSize      = 1000
	defaultPlanCacheTTL       = time.Hour
	defaultResultCacheSize    = 100
	defaultResultCacheTTL     = 5 * time.Minute
	defaultMaxResultCacheRows = 1000
	defaultMaxParallelDegree  = 4
	cacheSweepInterval        = 5 * time.Minute
)

// NewEngine builds an Engine from its required collaborators. All
// Configuration items in spec §6 default to the values documented there and
// can be overridden via EngineOption.
func NewEngine(dialect Dialect, metadata MetadataProvider, statistics StatisticsProvider, security SecurityProvider, driver Driver, opts ...EngineOption) *Engine {
	e := &Engine{
		dialect:  dialect,
		metadata: metadata,
		security: security,
		driver:   driver,

		enableRLS:                 true,
		enablePlanCache:           true,
		enableResultCache:         true,
		planCacheSize:             defaultPlanCacheSize,
		planCacheTTL:              defaultPlanCacheTTL,
		resultCacheSize:           defaultResultCacheSize,
		resultCacheTTL:            defaultResultCacheTTL,
		maxResultCacheSize:        defaultMaxResultCacheRows,
		enableParallel:            true,
		maxParallelDegree:         defaultMaxParallelDegree,
		useRelationshipLoading:    false,
		relationshipLoadingDegree: defaultMaxParallelDegree,

		obs: defaultObservabilityConfig(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.parser = NewParser(metadata, WithParserLogger(e.obs.Logger))
	e.enforcer = NewEnforcer(metadata, DefaultPolicies())
	e.optimizer = NewOptimizer(statistics, metadata)
	e.generator = NewGenerator(dialect, metadata)

	e.planCache = NewCache[*Plan](e.planCacheSize, e.planCacheTTL)
	e.resultCache = NewCache[Rows](e.resultCacheSize, e.resultCacheTTL)
	e.planCache.StartSweep(cacheSweepInterval)
	e.resultCache.StartSweep(cacheSweepInterval)

	return e
}

// Close stops both caches' background sweep goroutines. Callers that
// construct an Engine for the lifetime of a process don't need to call
// this; it exists for tests and short-lived Engines.
func (e *Engine) Close() {
	e.planCache.Stop()
	e.resultCache.Stop()
}

// --- Configuration options (spec §6) ---

// WithRLS toggles row-level security enforcement. Default true.
func WithRLS(enabled bool) EngineOption {
	return func(e *Engine) { e.enableRLS = enabled }
}

// WithPlanCache toggles plan memoization. Default true.
func WithPlanCache(enabled bool) EngineOption {
	return func(e *Engine) { e.enablePlanCache = enabled }
}

// WithResultCache toggles result-set memoization. Default true.
func WithResultCache(enabled bool) EngineOption {
	return func(e *Engine) { e.enableResultCache = enabled }
}

// WithPlanCacheSize overrides the plan cache's entry cap. Default 1000.
// Must be set before the Engine is constructed; it has no effect once
// NewEngine has already built the cache.
func WithPlanCacheSize(size int) EngineOption {
	return func(e *Engine) { e.planCacheSize = size }
}

// WithPlanCacheTTL overrides the plan cache's entry TTL. Default 1h.
func WithPlanCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.planCacheTTL = ttl }
}

// WithResultCacheSize overrides the result cache's entry cap. Default 100.
func WithResultCacheSize(size int) EngineOption {
	return func(e *Engine) { e.resultCacheSize = size }
}

// WithResultCacheTTL overrides the result cache's entry TTL. Default 5m.
func WithResultCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.resultCacheTTL = ttl }
}

// WithMaxResultCacheSize overrides the row-count ceiling above which a
// result set is never cached. Default 1000 rows.
func WithMaxResultCacheSize(rows int) EngineOption {
	return func(e *Engine) { e.maxResultCacheSize = rows }
}

// WithParallel toggles the optimizer's parallel execution strategy flag.
// Default true.
func WithParallel(enabled bool) EngineOption {
	return func(e *Engine) { e.enableParallel = enabled }
}

// WithMaxParallelDegree bounds the optimizer's parallel degree and, when
// relationship loading is enabled, the relationship fan-out width. Default 4.
func WithMaxParallelDegree(degree int) EngineOption {
	return func(e *Engine) {
		e.maxParallelDegree = degree
		e.relationshipLoadingDegree = degree
	}
}

// WithRelationshipLoadingStrategy enables the "child selects" strategy
// (spec §5): after the main statement runs, each relationship is fetched
// independently, in parallel, and merged onto parent rows by FK. The main
// statement still compiles the joins inline; this option adds the child
// selects and does not remove those joins. Default false (joins only).
func WithRelationshipLoadingStrategy(enabled bool) EngineOption {
	return func(e *Engine) { e.useRelationshipLoading = enabled }
}

// --- Public surface (spec §6, Engine public surface) ---

// Query parses, plans, compiles, and executes dsql, returning untyped rows.
func (e *Engine) Query(ctx context.Context, dsql string) (Rows, error) {
	sc, err := e.security.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("dsqlengine: resolving security context: %w", err)
	}
	plan, planKey, err := e.compilePlan(ctx, dsql, sc)
	if err != nil {
		return nil, err
	}
	return e.executePlan(ctx, plan, planKey)
}

// QueryTyped parses, plans, compiles, executes, and maps dsql into []T. It
// is a free function rather than a generic method because Go methods
// cannot carry their own type parameters (spec §9.1).
func QueryTyped[T any](ctx context.Context, e *Engine, dsql string) ([]T, error) {
	rows, err := e.Query(ctx, dsql)
	if err != nil {
		return nil, err
	}
	return mapper.Into[T](rows)
}

// ExecuteResult is the instrumented form of a query, carrying diagnostics
// alongside the (possibly typed) records (spec §6).
type ExecuteResult[T any] struct {
	Records       []T
	Success       bool
	Error         error
	ExecutionTime time.Duration
	RecordCount   int
	Metadata      *Plan
}

// Execute runs dsql like QueryTyped but returns the instrumented
// {records, success, error, execution_time, record_count, metadata} shape
// spec §6 names explicitly, never returning a Go error itself — failures
// are reported inside the result.
func Execute[T any](ctx context.Context, e *Engine, dsql string) *ExecuteResult[T] {
	start := time.Now()

	sc, err := e.security.Current(ctx)
	if err != nil {
		return &ExecuteResult[T]{Success: false, Error: err, ExecutionTime: time.Since(start)}
	}

	plan, planKey, err := e.compilePlan(ctx, dsql, sc)
	if err != nil {
		return &ExecuteResult[T]{Success: false, Error: err, ExecutionTime: time.Since(start)}
	}

	rows, err := e.executePlan(ctx, plan, planKey)
	if err != nil {
		return &ExecuteResult[T]{Success: false, Error: err, ExecutionTime: time.Since(start), Metadata: plan}
	}

	records, err := mapper.Into[T](rows)
	if err != nil {
		return &ExecuteResult[T]{Success: false, Error: err, ExecutionTime: time.Since(start), Metadata: plan}
	}

	return &ExecuteResult[T]{
		Records:       records,
		Success:       true,
		ExecutionTime: time.Since(start),
		RecordCount:   len(records),
		Metadata:      plan,
	}
}

// Explain parses, rewrites, and optimizes dsql without executing it,
// returning the resulting Plan.
func (e *Engine) Explain(ctx context.Context, dsql string) (*Plan, error) {
	sc, err := e.security.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("dsqlengine: resolving security context: %w", err)
	}
	plan, _, err := e.compilePlan(ctx, dsql, sc)
	return plan, err
}

// InvalidateCache removes every plan and result cache entry that depends on
// objectName (spec §4.5, invalidate_by_object).
func (e *Engine) InvalidateCache(objectName string) {
	e.planCache.InvalidateByObject(objectName)
	e.resultCache.InvalidateByObject(objectName)
}

// ClearCaches empties both caches unconditionally.
func (e *Engine) ClearCaches() {
	e.planCache.Clear()
	e.resultCache.Clear()
}

// CacheStatistics reports both caches' running statistics.
func (e *Engine) CacheStatistics() (plan CacheStatistics, result CacheStatistics) {
	return e.planCache.Statistics(), e.resultCache.Statistics()
}

// --- Pipeline internals ---

// compilePlan runs parse -> RLS -> plan cache lookup -> optimize, returning
// the resulting Plan and the cache key it was (or would be) stored under.
func (e *Engine) compilePlan(ctx context.Context, dsql string, sc SecurityContext) (*Plan, string, error) {
	var q *Query
	if err := e.instrument(ctx, "dsqlengine.Parse", "parse", func() error {
		var perr error
		q, perr = e.parser.Parse(ctx, dsql)
		return perr
	}); err != nil {
		return nil, "", err
	}

	if e.enableRLS {
		if err := e.instrument(ctx, "dsqlengine.RLS", "rls", func() error {
			var rerr error
			q, rerr = e.enforcer.Apply(ctx, q, sc)
			return rerr
		}); err != nil {
			return nil, "", err
		}
	}

	planKey := ComputePlanID(q, e.enableRLS, sc)

	if e.enablePlanCache {
		if cached, ok := e.planCache.Get(planKey); ok {
			e.recordCacheOutcome(ctx, "plan", true)
			return cached, planKey, nil
		}
		e.recordCacheOutcome(ctx, "plan", false)
	}

	var plan *Plan
	if err := e.instrument(ctx, "dsqlengine.Optimize", "optimize", func() error {
		plan = e.optimizer.Optimize(ctx, q, e.enableRLS, sc)
		if !e.enableParallel {
			plan.UseParallel = false
			plan.ParallelDegree = 1
		} else if plan.ParallelDegree > e.maxParallelDegree {
			plan.ParallelDegree = e.maxParallelDegree
		}
		return nil
	}); err != nil {
		return nil, "", err
	}

	if e.enablePlanCache {
		e.planCache.Set(planKey, plan, objectTagsForQuery(q)...)
	}

	return plan, planKey, nil
}

// executePlan runs generate -> (result cache check) -> driver execute ->
// optional parallel relationship loading -> (result cache store).
func (e *Engine) executePlan(ctx context.Context, plan *Plan, planKey string) (Rows, error) {
	if e.enableResultCache {
		if cached, ok := e.resultCache.Get(planKey); ok {
			e.recordCacheOutcome(ctx, "result", true)
			return cached, nil
		}
		e.recordCacheOutcome(ctx, "result", false)
	}

	var generated *Generated
	if err := e.instrument(ctx, "dsqlengine.Generate", "generate", func() error {
		var gerr error
		generated, gerr = e.generator.Generate(ctx, plan)
		return gerr
	}); err != nil {
		return nil, err
	}

	var rows Rows
	if err := e.instrument(ctx, "dsqlengine.Execute", "execute", func() error {
		var eerr error
		rows, eerr = e.driver.Execute(ctx, generated.SQL, generated.Params)
		if eerr != nil {
			return &SqlError{SQL: generated.SQL, Params: generated.Params, Err: eerr}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if e.useRelationshipLoading && len(plan.JoinOrder) > 0 {
		loader := newRelationshipLoader(e.driver, e.dialect, e.metadata, e.relationshipLoadingDegree)
		if err := loader.Load(ctx, plan.JoinOrder, rows); err != nil {
			return nil, err
		}
	}

	if e.enableResultCache && len(rows) <= e.maxResultCacheSize {
		e.resultCache.Set(planKey, rows, objectTagsForQuery(plan.Query)...)
	}

	return rows, nil
}
