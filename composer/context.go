package composer

import (
	"strings"

	"github.com/quorm/quorm/metadata"
)

// buildContext is the mutable state of one composition. Explicit joins are
// seeded from Params; the select builder and where builder register further
// joins through it. Alias registration is first-wins: adding a join under
// an already-taken alias is a no-op, not an error, so repeated filter
// definitions cannot double-join.
type buildContext struct {
	c      *Composer
	entity *metadata.EntityDef
	table  string
	params *Params

	aliases map[string]struct{}

	// Rendered join SQL, in emission order.
	autoJoins []string // implicit belongs-to joins from attribute selection
	joins     []Join   // explicit inner joins, rendered late
	leftJoins []Join   // explicit left joins, rendered late
	sideJoins []string // where-builder side-effect joins, pre-rendered

	autoJoined map[string]string // relation name -> alias
	distinct   bool

	// seq numbers uniquely-aliased filter joins within the query.
	seq int
}

func newBuildContext(c *Composer, entity *metadata.EntityDef, params *Params) *buildContext {
	ctx := &buildContext{
		c:          c,
		entity:     entity,
		table:      ToTableName(entity.Name()),
		params:     params,
		aliases:    make(map[string]struct{}),
		autoJoined: make(map[string]string),
	}
	for _, j := range params.Joins {
		ctx.addJoin(j)
	}
	for _, j := range params.LeftJoins {
		ctx.addLeftJoin(j)
	}
	return ctx
}

// joinAlias resolves the effective alias of an explicit join.
func (ctx *buildContext) joinAlias(j Join) string {
	if j.Alias != "" {
		return SanitizeAlias(j.Alias)
	}
	return SanitizeAlias(j.Target)
}

// reserveAlias registers an alias, reporting whether it was new.
// Registration is case-insensitive, matching SQL alias semantics.
func (ctx *buildContext) reserveAlias(alias string) bool {
	key := strings.ToLower(alias)
	if _, taken := ctx.aliases[key]; taken {
		return false
	}
	ctx.aliases[key] = struct{}{}
	return true
}

func (ctx *buildContext) hasAlias(alias string) bool {
	_, taken := ctx.aliases[strings.ToLower(alias)]
	return taken
}

// addJoin registers an explicit inner join. Returns false on alias collision.
func (ctx *buildContext) addJoin(j Join) bool {
	if !ctx.reserveAlias(ctx.joinAlias(j)) {
		return false
	}
	ctx.joins = append(ctx.joins, j)
	return true
}

// addLeftJoin registers an explicit left join. Returns false on alias collision.
func (ctx *buildContext) addLeftJoin(j Join) bool {
	if !ctx.reserveAlias(ctx.joinAlias(j)) {
		return false
	}
	ctx.leftJoins = append(ctx.leftJoins, j)
	return true
}

// addSideJoin appends pre-rendered join SQL under a reserved alias.
func (ctx *buildContext) addSideJoin(alias, sql string) bool {
	if !ctx.reserveAlias(alias) {
		return false
	}
	ctx.sideJoins = append(ctx.sideJoins, sql)
	return true
}

// setDistinct forces SELECT DISTINCT on the final query. One-way: nothing
// un-sets it once a to-many join requires row deduplication.
func (ctx *buildContext) setDistinct() {
	ctx.distinct = true
}

// nextSeq returns a per-query sequence number for generated filter aliases.
func (ctx *buildContext) nextSeq() int {
	ctx.seq++
	return ctx.seq
}

// column renders a base-table column reference for an attribute name.
func (ctx *buildContext) column(attribute string) string {
	return ctx.table + "." + ToColumnName(attribute)
}
