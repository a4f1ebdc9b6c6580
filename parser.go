package dsqlengine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// This file implements the DSQL parser (spec §4.1): a pragmatic top-level
// clause extractor, not a full grammar. It tokenizes the input to
// paren-depth 0 before matching clause keywords (spec §9's explicit
// correction of the regex-based approach a naive port would take), then
// recursively sub-parses the SELECT list and the WHERE/HAVING trees.
//
// Logical-operator precedence is deliberately left-to-right,
// first-occurrence rather than standard SQL precedence — this is a
// documented quirk (spec §9), not a bug: "A OR B AND C" parses as
// "(A) OR (B AND C)" because OR is the first top-level operator
// encountered scanning left to right, and its right operand is then
// recursively parsed (finding AND next).

var topLevelKeywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP BY", "HAVING", "ORDER BY", "LIMIT", "OFFSET",
}

// Parser compiles DSQL text into a Query tree. It holds a MetadataProvider
// so it can resolve dotted relationship references into Join entries as it
// parses — an unresolved relationship is a parse-time warning (logged, not
// returned as an error), per spec §4.1: "downstream stages will raise."
type Parser struct {
	metadata MetadataProvider
	logger   *slog.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithParserLogger attaches a logger used to record relationship-resolution
// warnings. Nil (the default) means warnings are silently dropped.
func WithParserLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) { p.logger = logger }
}

// NewParser builds a Parser backed by the given metadata provider.
func NewParser(metadata MetadataProvider, opts ...ParserOption) *Parser {
	p := &Parser{metadata: metadata}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse compiles DSQL text into a Query tree, or fails with a *ParseError.
// Parsing has no side effects: two calls with the same text (and the same
// metadata snapshot) yield structurally equal trees (spec §8, Idempotent
// parsing law).
func (p *Parser) Parse(ctx context.Context, text string) (*Query, error) {
	clauses, err := splitClauses(text)
	if err != nil {
		return nil, err
	}

	fromObject := strings.TrimSpace(clauses.from)
	if fromObject == "" {
		return nil, NewParseError("FROM clause names no object")
	}

	fields, err := p.parseSelectList(ctx, clauses.selectList)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, NewParseError("SELECT list is empty")
	}

	q := &Query{FromObject: fromObject, Fields: fields}

	if clauses.where != "" {
		where, err := p.parseCondition(ctx, clauses.where)
		if err != nil {
			return nil, err
		}
		q.Where = where
	}

	if clauses.groupBy != "" {
		q.GroupBy = parseGroupBy(clauses.groupBy)
	}

	if clauses.having != "" {
		having, err := p.parseCondition(ctx, clauses.having)
		if err != nil {
			return nil, err
		}
		if len(q.GroupBy) == 0 && !q.IsAggregateQuery() {
			return nil, NewParseError("HAVING requires GROUP BY or an aggregate field")
		}
		q.Having = having
	}

	if clauses.orderBy != "" {
		orders, err := parseOrderBy(clauses.orderBy)
		if err != nil {
			return nil, err
		}
		q.OrderBy = orders
	}

	if clauses.limit != "" {
		n, err := strconv.Atoi(strings.TrimSpace(clauses.limit))
		if err != nil {
			return nil, NewParseError("LIMIT value is not an integer: " + clauses.limit)
		}
		q.Limit = &n
	}

	if clauses.offset != "" {
		n, err := strconv.Atoi(strings.TrimSpace(clauses.offset))
		if err != nil {
			return nil, NewParseError("OFFSET value is not an integer: " + clauses.offset)
		}
		q.Offset = &n
	}

	p.resolveRelationships(ctx, q)

	return q, nil
}

// resolveRelationships scans the SELECT list for dotted field references
// and materializes a Join per distinct leading segment, deduplicating by
// relationship name (spec §3, §4.1). Unresolvable relationships are logged
// and skipped, not failed: the spec treats this as a warning because
// generation, not parsing, is where a dangling reference must surface.
func (p *Parser) resolveRelationships(ctx context.Context, q *Query) {
	if p.metadata == nil {
		return
	}

	seen := make(map[string]bool)
	var meta ObjectMetadata
	var metaLoaded bool
	var metaErr error

	for _, f := range q.Fields {
		if f.Name == "" {
			continue
		}
		relName, dotted := f.Name.Relationship()
		if !dotted || seen[relName] {
			continue
		}
		seen[relName] = true

		if !metaLoaded {
			meta, metaErr = p.metadata.Get(ctx, q.FromObject)
			metaLoaded = true
		}
		if metaErr != nil {
			p.warnf("could not load metadata for %q to resolve relationship %q: %v", q.FromObject, relName, metaErr)
			continue
		}

		rel, ok := meta.RelationshipByName(relName)
		if !ok {
			p.warnf("object %q declares no relationship %q", q.FromObject, relName)
			continue
		}

		q.Joins = append(q.Joins, Join{
			RelationshipName: rel.Name,
			TargetObject:     rel.TargetObject,
			ForeignKey:       rel.ForeignKey,
			PrimaryKey:       rel.ReferencedKey,
			Type:             JoinLeft, // parent lookups via dotted fields are optional by default
		})
	}
}

func (p *Parser) warnf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Warn("dsql parser: " + fmt.Sprintf(format, args...))
	}
}

// -- SELECT list --------------------------------------------------------

func (p *Parser) parseSelectList(ctx context.Context, text string) ([]Field, error) {
	items := splitTopLevelCommas(text)
	fields := make([]Field, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		field, err := p.parseSelectItem(ctx, item)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func (p *Parser) parseSelectItem(ctx context.Context, item string) (Field, error) {
	if strings.HasPrefix(item, "(") {
		return p.parseSubqueryField(ctx, item)
	}
	if fn, arg, alias, ok := matchAggregate(item); ok {
		return Field{AggregateFn: fn, AggregateArg: FieldName(arg), Alias: alias}, nil
	}
	name, alias := splitTrailingAlias(item)
	if name == "" {
		return Field{}, NewParseError("empty field reference in SELECT list: " + item)
	}
	return Field{Name: FieldName(name), Alias: alias}, nil
}

func (p *Parser) parseSubqueryField(ctx context.Context, item string) (Field, error) {
	closeIdx, err := findMatchingParen(item, 0)
	if err != nil {
		return Field{}, NewParseError("unbalanced parentheses in SELECT list: " + item)
	}
	inner := strings.TrimSpace(item[1:closeIdx])
	if !strings.HasPrefix(strings.ToUpper(inner), "SELECT") {
		return Field{}, NewParseError("expected nested SELECT in parenthesized field: " + item)
	}
	sub, err := p.Parse(ctx, inner)
	if err != nil {
		return Field{}, err
	}
	remainder := strings.TrimSpace(item[closeIdx+1:])
	_, alias := splitTrailingAlias("x " + remainder)
	if remainder == "" {
		alias = ""
	}
	return Field{Subquery: sub, Alias: alias}, nil
}

// matchAggregate detects "<FN>(<arg>) [[AS] alias]" select items. COUNT's
// argument may be DISTINCT-prefixed, which promotes the function to
// AggCountDistinct; COUNT(*) has no argument.
func matchAggregate(item string) (fn AggregateFunc, arg string, alias string, ok bool) {
	openIdx := strings.IndexByte(item, '(')
	if openIdx < 0 {
		return "", "", "", false
	}
	name := strings.ToUpper(strings.TrimSpace(item[:openIdx]))
	switch name {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
	default:
		return "", "", "", false
	}
	closeIdx, err := findMatchingParen(item, openIdx)
	if err != nil {
		return "", "", "", false
	}
	inner := strings.TrimSpace(item[openIdx+1 : closeIdx])
	remainder := strings.TrimSpace(item[closeIdx+1:])

	if name == "COUNT" && strings.HasPrefix(strings.ToUpper(inner), "DISTINCT") {
		rest := strings.TrimSpace(inner[len("DISTINCT"):])
		_, alias = splitTrailingAliasText(remainder)
		return AggCountDistinct, rest, alias, true
	}

	if inner == "*" {
		inner = ""
	}
	_, alias = splitTrailingAliasText(remainder)
	return AggregateFunc(name), inner, alias, true
}

// splitTrailingAlias splits "field AS alias" or "field alias" into its two
// parts; returns alias == "" when no trailing token is present.
func splitTrailingAlias(item string) (name string, alias string) {
	fields := strings.Fields(item)
	if len(fields) == 0 {
		return "", ""
	}
	if len(fields) == 1 {
		return fields[0], ""
	}
	if len(fields) == 3 && strings.EqualFold(fields[1], "AS") {
		return fields[0], fields[2]
	}
	if len(fields) == 2 {
		return fields[0], fields[1]
	}
	// More tokens than expected: treat the first as the field and the rest,
	// joined, as a defensive fallback alias.
	return fields[0], strings.Join(fields[1:], " ")
}

// splitTrailingAliasText extracts a trailing "AS alias" or bare alias token
// from text that has no leading field (used after a subquery/aggregate's
// closing paren, where only the alias portion remains).
func splitTrailingAliasText(text string) (consumed bool, alias string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, ""
	}
	if strings.HasPrefix(strings.ToUpper(text), "AS ") {
		return true, strings.TrimSpace(text[3:])
	}
	return true, text
}

// -- WHERE / HAVING -------------------------------------------------------

func (p *Parser) parseCondition(ctx context.Context, text string) (*Condition, error) {
	text = strings.TrimSpace(text)
	text = stripOuterParens(text)

	if idx, opLen, op, found := findTopLevelLogicalOp(text); found {
		left := text[:idx]
		right := text[idx+opLen:]
		l, err := p.parseCondition(ctx, left)
		if err != nil {
			return nil, err
		}
		r, err := p.parseCondition(ctx, right)
		if err != nil {
			return nil, err
		}
		return &Condition{Logical: op, Left: l, Right: r}, nil
	}

	return p.parsePredicate(ctx, text)
}

func (p *Parser) parsePredicate(ctx context.Context, text string) (*Condition, error) {
	text = strings.TrimSpace(text)
	field, rest := splitLeadingField(text)
	if field == "" {
		return nil, NewParseError("expected field reference in condition: " + text)
	}
	// An aggregate call such as COUNT(Id) in HAVING: keep the argument list
	// as part of the field reference.
	if strings.HasPrefix(rest, "(") {
		if closeIdx, err := findMatchingParen(rest, 0); err == nil {
			field += rest[:closeIdx+1]
			rest = rest[closeIdx+1:]
		}
	}
	rest = strings.TrimSpace(rest)

	word, afterWord := nextWord(rest)
	upperWord := strings.ToUpper(word)

	switch upperWord {
	case "IN":
		return p.parseInCondition(ctx, field, afterWord, OpIn)
	case "NOT":
		word2, afterWord2 := nextWord(strings.TrimSpace(afterWord))
		if strings.ToUpper(word2) != "IN" {
			return nil, NewParseError("expected IN after NOT in condition: " + text)
		}
		return p.parseInCondition(ctx, field, afterWord2, OpNotIn)
	case "IS":
		rest2 := strings.TrimSpace(afterWord)
		word2, afterWord2 := nextWord(rest2)
		if strings.EqualFold(word2, "NOT") {
			word3, _ := nextWord(strings.TrimSpace(afterWord2))
			if !strings.EqualFold(word3, "NULL") {
				return nil, NewParseError("expected NULL after IS NOT: " + text)
			}
			return &Condition{Field: FieldName(field), Op: OpIsNotNull}, nil
		}
		if !strings.EqualFold(word2, "NULL") {
			return nil, NewParseError("expected NULL after IS: " + text)
		}
		return &Condition{Field: FieldName(field), Op: OpIsNull}, nil
	case "LIKE":
		return parseLikeCondition(field, afterWord)
	}

	return parseComparison(field, rest)
}

func (p *Parser) parseInCondition(ctx context.Context, field string, rest string, op Op) (*Condition, error) {
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") {
		return nil, NewParseError("expected ( after IN for field " + field)
	}
	closeIdx, err := findMatchingParen(rest, 0)
	if err != nil {
		return nil, NewParseError("unbalanced parentheses in IN clause for field " + field)
	}
	inner := strings.TrimSpace(rest[1:closeIdx])

	if strings.HasPrefix(strings.ToUpper(inner), "SELECT") {
		sub, err := p.Parse(ctx, inner)
		if err != nil {
			return nil, err
		}
		return &Condition{Field: FieldName(field), Op: op, Subquery: sub}, nil
	}

	items := splitTopLevelCommas(inner)
	values := make([]any, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		values = append(values, parseLiteral(item))
	}
	return &Condition{Field: FieldName(field), Op: op, Value: values}, nil
}

func parseLikeCondition(field string, rest string) (*Condition, error) {
	lit := parseLiteral(strings.TrimSpace(rest))
	pattern, ok := lit.(string)
	if !ok {
		return nil, NewParseError("LIKE pattern must be a string literal for field " + field)
	}

	hasPrefixPct := strings.HasPrefix(pattern, "%")
	hasSuffixPct := strings.HasSuffix(pattern, "%") && len(pattern) > 1

	switch {
	case hasPrefixPct && hasSuffixPct:
		return &Condition{Field: FieldName(field), Op: OpContains, Value: pattern[1 : len(pattern)-1]}, nil
	case hasSuffixPct:
		return &Condition{Field: FieldName(field), Op: OpStartsWith, Value: pattern[:len(pattern)-1]}, nil
	case hasPrefixPct:
		return &Condition{Field: FieldName(field), Op: OpEndsWith, Value: pattern[1:]}, nil
	default:
		return &Condition{Field: FieldName(field), Op: OpLike, Value: pattern}, nil
	}
}

func parseComparison(field string, rest string) (*Condition, error) {
	rest = strings.TrimSpace(rest)
	ops := []struct {
		token string
		op    Op
	}{
		{"!=", OpNeq},
		{"<>", OpNeq},
		{"<=", OpLte},
		{">=", OpGte},
		{"=", OpEq},
		{"<", OpLt},
		{">", OpGt},
	}
	for _, candidate := range ops {
		if strings.HasPrefix(rest, candidate.token) {
			value := strings.TrimSpace(rest[len(candidate.token):])
			return &Condition{Field: FieldName(field), Op: candidate.op, Value: parseLiteral(value)}, nil
		}
	}
	return nil, NewParseError("unrecognized operator in condition for field " + field + ": " + rest)
}

// -- ORDER BY / GROUP BY ---------------------------------------------------

func parseOrderBy(text string) ([]Order, error) {
	items := splitTopLevelCommas(text)
	orders := make([]Order, 0, len(items))
	for _, item := range items {
		tokens := strings.Fields(item)
		if len(tokens) == 0 {
			continue
		}
		order := Order{Field: FieldName(tokens[0]), Direction: Asc, Nulls: NullsLast}
		for i := 1; i < len(tokens); i++ {
			switch strings.ToUpper(tokens[i]) {
			case "DESC":
				order.Direction = Desc
			case "ASC":
				order.Direction = Asc
			case "NULLS":
				if i+1 < len(tokens) {
					switch strings.ToUpper(tokens[i+1]) {
					case "FIRST":
						order.Nulls = NullsFirst
					case "LAST":
						order.Nulls = NullsLast
					}
					i++
				}
			}
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func parseGroupBy(text string) []FieldName {
	items := splitTopLevelCommas(text)
	fields := make([]FieldName, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			fields = append(fields, FieldName(item))
		}
	}
	return fields
}

// -- Literals ---------------------------------------------------------------

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseLiteral classifies a single literal token: quoted string, NULL,
// boolean, integer, float, date, falling back to a bare string (spec
// §4.1).
func parseLiteral(raw string) any {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			return raw[1 : len(raw)-1]
		}
	}

	switch strings.ToUpper(raw) {
	case "NULL":
		return nil
	case "TRUE":
		return true
	case "FALSE":
		return false
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return raw
}

// -- Tokenizing helpers -------------------------------------------------

func isIdentChar(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// splitLeadingField reads a contiguous run of identifier characters
// (letters, digits, '_', '.') from the start of s, returning the field name
// and whatever follows.
func splitLeadingField(s string) (field string, rest string) {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// nextWord reads a leading run of letters (a keyword token), returning the
// word and the remainder of the string, including any whitespace that
// follows the word.
func nextWord(s string) (word string, rest string) {
	i := 0
	for i < len(s) && ((s[i] >= 'a' && s[i] <= 'z') || (s[i] >= 'A' && s[i] <= 'Z')) {
		i++
	}
	word = s[:i]
	rest = s[i:]
	return word, rest
}

// splitTopLevelCommas splits s at commas that occur outside quotes and
// outside parentheses.
func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// findMatchingParen returns the index of the ')' matching the '(' at
// openIdx, accounting for nesting and quoted strings.
func findMatchingParen(s string, openIdx int) (int, error) {
	depth := 0
	var quote byte
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, NewParseError("unbalanced parentheses")
}

// stripOuterParens removes a wrapping pair of balanced parentheses, but
// only when that pair spans the entire string (spec §4.1).
func stripOuterParens(s string) string {
	for strings.HasPrefix(s, "(") {
		closeIdx, err := findMatchingParen(s, 0)
		if err != nil || closeIdx != len(s)-1 {
			break
		}
		s = strings.TrimSpace(s[1:closeIdx])
	}
	return s
}

// findTopLevelLogicalOp scans s left to right for the first whitespace-
// delimited AND/OR token at paren depth 0 outside quotes. Per spec §4.1 and
// §9, this is a first-occurrence scan regardless of which keyword it is —
// not a search for AND specifically then OR — which is what gives the
// engine its documented left-to-right (non-SQL) precedence.
func findTopLevelLogicalOp(s string) (idx int, tokenLen int, op LogicalOp, found bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '\'' || c == '"':
			quote = c
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		if i > 0 && isIdentChar(s[i-1]) {
			continue
		}
		if matchWordAt(s, i, "AND") {
			return i, 3, LogicalAnd, true
		}
		if matchWordAt(s, i, "OR") {
			return i, 2, LogicalOr, true
		}
	}
	return 0, 0, "", false
}

func matchWordAt(s string, i int, word string) bool {
	if i+len(word) > len(s) {
		return false
	}
	if !strings.EqualFold(s[i:i+len(word)], word) {
		return false
	}
	end := i + len(word)
	if end < len(s) && isIdentChar(s[end]) {
		return false
	}
	return true
}

// -- Top-level clause splitting -------------------------------------------

type clauseTexts struct {
	selectList string
	from       string
	where      string
	groupBy    string
	having     string
	orderBy    string
	limit      string
	offset     string
}

type clauseMatch struct {
	keyword string
	start   int
	end     int
}

// splitClauses segments DSQL text into its top-level clauses by
// tokenizing to paren-depth 0 before matching keywords (spec §9), rather
// than the fragile regex-segmentation the spec explicitly calls out as
// failing on nested subqueries that themselves contain clause keywords.
func splitClauses(text string) (clauseTexts, error) {
	var matches []clauseMatch
	depth := 0
	var quote byte

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			i++
			continue
		case c == '\'' || c == '"':
			quote = c
			i++
			continue
		case c == '(':
			depth++
			i++
			continue
		case c == ')':
			depth--
			i++
			continue
		}

		if depth == 0 {
			matchedKeyword := ""
			matchedEnd := i
			for _, kw := range topLevelKeywords {
				if end, ok := matchKeywordAt(text, i, kw); ok {
					matchedKeyword = kw
					matchedEnd = end
					break
				}
			}
			if matchedKeyword != "" {
				matches = append(matches, clauseMatch{keyword: matchedKeyword, start: i, end: matchedEnd})
				i = matchedEnd
				continue
			}
		}
		i++
	}

	if len(matches) == 0 || matches[0].keyword != "SELECT" {
		return clauseTexts{}, NewParseError("query must start with SELECT")
	}

	var fromIdx = -1
	for i, m := range matches {
		if m.keyword == "FROM" {
			fromIdx = i
			break
		}
	}
	if fromIdx < 0 {
		return clauseTexts{}, NewParseError("query has no FROM clause")
	}

	clauseEnd := func(i int) int {
		if i+1 < len(matches) {
			return matches[i+1].start
		}
		return len(text)
	}

	var out clauseTexts
	for i, m := range matches {
		body := strings.TrimSpace(text[m.end:clauseEnd(i)])
		switch m.keyword {
		case "SELECT":
			out.selectList = body
		case "FROM":
			out.from = body
		case "WHERE":
			out.where = body
		case "GROUP BY":
			out.groupBy = body
		case "HAVING":
			out.having = body
		case "ORDER BY":
			out.orderBy = body
		case "LIMIT":
			out.limit = body
		case "OFFSET":
			out.offset = body
		}
	}

	return out, nil
}

// matchKeywordAt reports whether kw (a possibly multi-word keyword like
// "GROUP BY") matches text at position i as a whole word, and returns the
// index just past the match.
func matchKeywordAt(text string, i int, kw string) (int, bool) {
	if i > 0 && isIdentChar(text[i-1]) {
		return 0, false
	}
	parts := strings.Fields(kw)
	pos := i
	for pi, part := range parts {
		if pi > 0 {
			wsStart := pos
			for pos < len(text) && isSpace(text[pos]) {
				pos++
			}
			if pos == wsStart {
				return 0, false
			}
		}
		if pos+len(part) > len(text) {
			return 0, false
		}
		if !strings.EqualFold(text[pos:pos+len(part)], part) {
			return 0, false
		}
		pos += len(part)
	}
	if pos < len(text) && isIdentChar(text[pos]) {
		return 0, false
	}
	return pos, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
