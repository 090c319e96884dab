package composer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quorm/quorm/metadata"
)

// Composer turns a parameter bag and entity metadata into a single SQL
// statement. Values are inlined with quoting rather than bound, because the
// generated text feeds query logs, stored filters and sub-select
// composition where placeholder numbering cannot survive.
//
// A Composer is immutable after construction and safe for concurrent use.
type Composer struct {
	meta    metadata.Provider
	aliases *AliasCache
	limit   LimitStrategy

	// maxTextColumnLength truncates text columns in wildcard selects.
	// Zero disables truncation.
	maxTextColumnLength int

	now func() time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithLimitStrategy selects the dialect's limit clause rendering.
func WithLimitStrategy(s LimitStrategy) Option {
	return func(c *Composer) { c.limit = s }
}

// WithAliasCache shares a join alias cache between composers.
func WithAliasCache(cache *AliasCache) Option {
	return func(c *Composer) { c.aliases = cache }
}

// WithMaxTextColumnLength truncates text columns in wildcard selects to n
// characters.
func WithMaxTextColumnLength(n int) Option {
	return func(c *Composer) { c.maxTextColumnLength = n }
}

// WithClock overrides the clock behind date-relative operators. Tests pin
// it; production code leaves it alone.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// New builds a Composer over the given metadata. Defaults: MySQL limits,
// a private alias cache, no text truncation, the wall clock.
func New(meta metadata.Provider, opts ...Option) *Composer {
	c := &Composer{
		meta:    meta,
		aliases: NewAliasCache(),
		limit:   MySQLLimit{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders one statement of the given kind.
func (c *Composer) Compose(kind Kind, params *Params) (string, error) {
	if params == nil || params.From == "" {
		return "", fmt.Errorf("%w: missing target entity type", ErrInvalidParams)
	}
	if err := validateParams(kind, params); err != nil {
		return "", err
	}

	entity, err := c.meta.EntityDef(params.From)
	if err != nil {
		return "", err
	}

	switch kind {
	case KindSelect:
		return c.composeSelect(entity, params)
	case KindInsert:
		return c.composeInsert(entity, params)
	case KindUpdate:
		return c.composeUpdate(entity, params)
	case KindDelete:
		return c.composeDelete(entity, params)
	default:
		return "", fmt.Errorf("%w: statement kind %q", ErrInvalidParams, kind)
	}
}

func validateParams(kind Kind, params *Params) error {
	if kind != KindSelect {
		switch {
		case params.Aggregation != "":
			return fmt.Errorf("%w: aggregation on %s", ErrInvalidParams, kind)
		case params.Offset != nil:
			return fmt.Errorf("%w: offset on %s", ErrInvalidParams, kind)
		case len(params.Having) > 0 || len(params.GroupBy) > 0:
			return fmt.Errorf("%w: grouping on %s", ErrInvalidParams, kind)
		}
	}
	if kind != KindUpdate && len(params.Set) > 0 {
		return fmt.Errorf("%w: set clause on %s", ErrInvalidParams, kind)
	}
	if kind != KindInsert && (len(params.Columns) > 0 || len(params.Values) > 0 || params.ValuesSelect != nil) {
		return fmt.Errorf("%w: insert values on %s", ErrInvalidParams, kind)
	}
	return nil
}

// whereConditions is the caller's where tree plus the implicit soft-delete
// filter, which applies whenever the entity records deletion and the caller
// did not opt out.
func (c *Composer) whereConditions(entity *metadata.EntityDef, params *Params) []Condition {
	conds := params.Where
	if !params.WithDeleted && entity.HasAttribute("deleted") {
		conds = append([]Condition{Cmp("deleted", false)}, conds...)
	}
	return conds
}

// renderWhereClause lowers the where tree plus the raw custom tail into the
// final WHERE expression.
func (ctx *buildContext) renderWhereClause(conds []Condition) (string, error) {
	where, err := ctx.buildWhere(conds, OpAnd, 0)
	if err != nil {
		return "", err
	}
	out := newJoiner(" AND ")
	out.add(where)
	out.add(strings.TrimSpace(ctx.params.CustomWhere))
	return out.String(), nil
}

func (c *Composer) composeSelect(entity *metadata.EntityDef, params *Params) (string, error) {
	ctx := newBuildContext(c, entity, params)

	// Build order matters: where, having, select list, grouping and order
	// all may register side-effect joins, which the join clause then emits.
	where, err := ctx.renderWhereClause(c.whereConditions(entity, params))
	if err != nil {
		return "", err
	}
	having, err := ctx.buildWhere(params.Having, OpAnd, 0)
	if err != nil {
		return "", err
	}
	selectList, err := ctx.renderSelectList()
	if err != nil {
		return "", err
	}
	groupBy, err := ctx.renderGroupBy()
	if err != nil {
		return "", err
	}
	// An aggregation replaces the select list with a single value; a
	// caller's order spec would reference columns absent from the result,
	// so it is dropped together with the limit below.
	order := ""
	if params.Aggregation == "" {
		order, err = ctx.renderOrder()
		if err != nil {
			return "", err
		}
	}
	joins, err := ctx.renderJoins()
	if err != nil {
		return "", err
	}

	q := newJoiner(" ")
	q.add("SELECT")
	if params.Aggregation == "" && (ctx.distinct || params.Distinct) {
		q.add("DISTINCT")
	}
	q.add(selectList)
	q.add("FROM " + Quote(ctx.table))
	q.add(c.renderIndexHints(entity, params))
	q.add(joins)
	q.addIf(where != "", "WHERE "+where)
	q.addIf(groupBy != "", "GROUP BY "+groupBy)
	q.addIf(having != "", "HAVING "+having)
	q.addIf(order != "", "ORDER BY "+order)
	if params.Aggregation == "" {
		q.add(c.limit.Render(params.Limit, params.Offset))
	}

	sql := q.String()

	// A grouped COUNT collapses to one row per group; the caller wants the
	// group count, so the whole select nests under an outer COUNT(*).
	if strings.EqualFold(params.Aggregation, "COUNT") && len(params.GroupBy) > 0 {
		sql = "SELECT COUNT(*) AS `value` FROM (" + sql + ") AS `countAlias`"
	}
	return sql, nil
}

func (ctx *buildContext) renderSelectList() (string, error) {
	if ctx.params.Aggregation != "" {
		return ctx.renderAggregation()
	}
	if len(ctx.params.Select) > 0 {
		return ctx.renderExplicitSelect()
	}
	return ctx.renderWildcardSelect()
}

func (ctx *buildContext) renderAggregation() (string, error) {
	name := strings.ToUpper(Sanitize(ctx.params.Aggregation))
	by := ctx.params.AggregationBy
	if by == "" {
		by = "id"
	}
	sql, err := ctx.renderExpression(name + ":(" + by + ")")
	if err != nil {
		return "", err
	}
	return sql + " AS `value`", nil
}

func (ctx *buildContext) renderExplicitSelect() (string, error) {
	out := newJoiner(", ")
	for _, item := range ctx.params.Select {
		if item.Expr == "*" {
			wildcard, err := ctx.renderWildcardSelect()
			if err != nil {
				return "", err
			}
			out.add(wildcard)
			continue
		}

		sql, err := ctx.renderSelectExpr(item.Expr)
		if err != nil {
			return "", err
		}
		alias := item.Alias
		if alias == "" {
			alias = item.Expr
		}
		out.add(sql + " AS " + Quote(SanitizeAlias(alias)))
	}
	return out.String(), nil
}

func (ctx *buildContext) renderSelectExpr(s string) (string, error) {
	if strings.ContainsAny(s, ".:(") {
		return ctx.renderExpression(s)
	}
	attr, ok := ctx.entity.Attribute(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown attribute %s.%s", ErrInvalidParams, ctx.entity.Name(), s)
	}
	return ctx.renderAttributeSelect(attr)
}

// renderWildcardSelect expands the entity's storable attributes, each
// aliased back to its attribute name so scanning works on logical names.
func (ctx *buildContext) renderWildcardSelect() (string, error) {
	out := newJoiner(", ")
	for _, attr := range ctx.entity.Attributes() {
		if attr.NotStorable {
			continue
		}
		sql, err := ctx.renderAttributeSelect(attr)
		if err != nil {
			return "", err
		}
		out.add(sql + " AS " + Quote(attr.Name))
	}
	if out.empty() {
		return ctx.table + ".*", nil
	}
	return out.String(), nil
}

func (ctx *buildContext) renderAttributeSelect(attr *metadata.AttributeDef) (string, error) {
	if attr.Select != "" {
		return "(" + attr.Select + ")", nil
	}
	if attr.Type == metadata.TypeForeign {
		return ctx.renderForeignAttribute(attr)
	}

	col := ctx.column(attr.Name)
	if attr.Type == metadata.TypeText && ctx.c.maxTextColumnLength > 0 {
		return fmt.Sprintf("LEFT(%s, %d)", col, ctx.c.maxTextColumnLength), nil
	}
	return col, nil
}

func (ctx *buildContext) renderGroupBy() (string, error) {
	out := newJoiner(", ")
	for _, g := range ctx.params.GroupBy {
		var (
			sql string
			err error
		)
		if strings.ContainsAny(g, ".:(") {
			sql, err = ctx.renderExpression(g)
		} else {
			sql, err = ctx.leftSide(g)
		}
		if err != nil {
			return "", err
		}
		out.add(sql)
	}
	return out.String(), nil
}

func (c *Composer) renderIndexHints(entity *metadata.EntityDef, params *Params) string {
	keys := newJoiner(", ")
	for _, name := range params.UseIndex {
		if key, ok := c.meta.IndexKey(entity.Name(), name); ok {
			keys.add(Quote(key))
		}
	}
	if keys.empty() {
		return ""
	}
	return "USE INDEX (" + keys.String() + ")"
}

func (c *Composer) composeInsert(entity *metadata.EntityDef, params *Params) (string, error) {
	if len(params.Columns) == 0 {
		return "", fmt.Errorf("%w: insert without columns", ErrInvalidParams)
	}
	if len(params.Values) == 0 && params.ValuesSelect == nil {
		return "", fmt.Errorf("%w: insert without values", ErrInvalidParams)
	}
	if len(params.Values) > 0 && params.ValuesSelect != nil {
		return "", fmt.Errorf("%w: insert with both literal values and a select", ErrInvalidParams)
	}

	cols := newJoiner(", ")
	for _, col := range params.Columns {
		cols.add(Quote(ToColumnName(col)))
	}

	q := newJoiner(" ")
	q.add("INSERT INTO " + Quote(ToTableName(entity.Name())))
	q.add("(" + cols.String() + ")")

	if params.ValuesSelect != nil {
		sub, err := c.Compose(KindSelect, params.ValuesSelect)
		if err != nil {
			return "", err
		}
		q.add(sub)
	} else {
		rows := newJoiner(", ")
		for _, row := range params.Values {
			vals := newJoiner(", ")
			for _, col := range params.Columns {
				v, ok := row[col]
				if !ok {
					return "", fmt.Errorf("%w: insert row missing column %q", ErrInvalidParams, col)
				}
				vals.add(QuoteValue(v))
			}
			rows.add("(" + vals.String() + ")")
		}
		q.add("VALUES " + rows.String())
	}

	if len(params.OnDuplicateSet) > 0 {
		q.add("ON DUPLICATE KEY UPDATE " + renderAssignments("", params.OnDuplicateSet))
	}
	return q.String(), nil
}

func (c *Composer) composeUpdate(entity *metadata.EntityDef, params *Params) (string, error) {
	if len(params.Set) == 0 {
		return "", fmt.Errorf("%w: update without set clause", ErrInvalidParams)
	}
	if params.Limit != nil && !c.limit.SupportsWriteLimit() {
		return "", fmt.Errorf("%w: %s does not support limited updates", ErrInvalidParams, c.limit.Name())
	}

	ctx := newBuildContext(c, entity, params)
	where, err := ctx.renderWhereClause(c.whereConditions(entity, params))
	if err != nil {
		return "", err
	}
	order, err := ctx.renderOrder()
	if err != nil {
		return "", err
	}
	joins, err := ctx.renderJoins()
	if err != nil {
		return "", err
	}

	q := newJoiner(" ")
	q.add("UPDATE " + Quote(ctx.table))
	q.add(joins)
	q.add("SET " + renderAssignments(ctx.table, params.Set))
	q.addIf(where != "", "WHERE "+where)
	q.addIf(order != "", "ORDER BY "+order)
	q.add(c.limit.Render(params.Limit, nil))
	return q.String(), nil
}

func (c *Composer) composeDelete(entity *metadata.EntityDef, params *Params) (string, error) {
	if params.Limit != nil && !c.limit.SupportsWriteLimit() {
		return "", fmt.Errorf("%w: %s does not support limited deletes", ErrInvalidParams, c.limit.Name())
	}

	ctx := newBuildContext(c, entity, params)
	where, err := ctx.renderWhereClause(c.whereConditions(entity, params))
	if err != nil {
		return "", err
	}
	order, err := ctx.renderOrder()
	if err != nil {
		return "", err
	}
	joins, err := ctx.renderJoins()
	if err != nil {
		return "", err
	}

	q := newJoiner(" ")
	if joins != "" {
		// The multi-table form must name the target table to delete from.
		q.add("DELETE " + Quote(ctx.table))
		q.add("FROM " + Quote(ctx.table))
		q.add(joins)
	} else {
		q.add("DELETE FROM " + Quote(ctx.table))
	}
	q.addIf(where != "", "WHERE "+where)
	q.addIf(order != "", "ORDER BY "+order)
	q.add(c.limit.Render(params.Limit, nil))
	return q.String(), nil
}

// renderAssignments renders a sorted "col = value" list. A non-empty table
// prefixes the column references.
func renderAssignments(table string, set map[string]any) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := newJoiner(", ")
	for _, k := range keys {
		col := Quote(ToColumnName(k))
		if table != "" {
			col = table + "." + ToColumnName(k)
		}
		out.add(col + " = " + QuoteValue(set[k]))
	}
	return out.String()
}
