package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quorm/quorm/metadata"
)

// ensureRelationAlias returns the join alias for a relation, registering an
// implicit join the first time a belongs-to / has-one relation is referenced
// by attribute selection or a where leaf. Relations already joined
// explicitly keep their registered alias.
func (ctx *buildContext) ensureRelationAlias(rel *metadata.RelationDef) (string, error) {
	if alias, done := ctx.autoJoined[rel.Name]; done {
		return alias, nil
	}

	alias := ctx.c.aliases.Alias(ctx.entity, rel.Name)
	if ctx.hasAlias(alias) {
		// Explicitly joined under its cached alias; nothing to add.
		ctx.autoJoined[rel.Name] = alias
		return alias, nil
	}
	if rel.NoJoin {
		ctx.autoJoined[rel.Name] = alias
		return alias, nil
	}

	var sql string
	switch rel.Type {
	case metadata.RelationBelongsTo:
		sql = ctx.renderBelongsToJoin(rel, alias)
	case metadata.RelationHasOne:
		sql = ctx.renderHasJoin(rel, alias, nil)
	default:
		return "", fmt.Errorf("%w: relation %s.%s (%s) cannot be joined implicitly",
			ErrUnknownRelation, ctx.entity.Name(), rel.Name, rel.Type)
	}

	ctx.reserveAlias(alias)
	ctx.autoJoins = append(ctx.autoJoins, sql)
	ctx.autoJoined[rel.Name] = alias
	return alias, nil
}

func (ctx *buildContext) renderBelongsToJoin(rel *metadata.RelationDef, alias string) string {
	table := ToTableName(rel.Entity)
	key := ToColumnName(rel.KeyOrDefault(ctx.entity.Name()))
	foreignKey := ToColumnName(rel.ForeignKeyOrDefault(ctx.entity.Name()))
	return fmt.Sprintf("LEFT JOIN %s AS %s ON %s.%s = %s.%s",
		Quote(table), Quote(alias), ctx.table, key, alias, foreignKey)
}

// renderHasJoin renders a has-many / has-one join: child rows hang off the
// owner id and soft-deleted children are always filtered.
func (ctx *buildContext) renderHasJoin(rel *metadata.RelationDef, alias string, conds map[string]any) string {
	table := ToTableName(rel.Entity)
	key := ToColumnName(rel.KeyOrDefault(ctx.entity.Name()))
	foreignKey := ToColumnName(rel.ForeignKeyOrDefault(ctx.entity.Name()))

	on := newJoiner(" AND ")
	on.add(fmt.Sprintf("%s.%s = %s.%s", alias, foreignKey, ctx.table, key))
	on.add(alias + ".deleted = 0")
	on.add(renderEqualityConditions(alias, conds))
	return fmt.Sprintf("LEFT JOIN %s AS %s ON %s", Quote(table), Quote(alias), on)
}

// renderJoins assembles the final join clause. Emission order is fixed:
// implicit belongs-to joins, explicit joins, explicit left joins,
// where-builder side-effect joins, then raw custom join text.
func (ctx *buildContext) renderJoins() (string, error) {
	out := newJoiner(" ")
	out.add(ctx.autoJoins...)

	for _, j := range ctx.joins {
		sql, err := ctx.renderExplicitJoin(j, "JOIN")
		if err != nil {
			return "", err
		}
		out.add(sql)
	}
	for _, j := range ctx.leftJoins {
		sql, err := ctx.renderExplicitJoin(j, "LEFT JOIN")
		if err != nil {
			return "", err
		}
		out.add(sql)
	}

	out.add(ctx.sideJoins...)
	out.add(strings.TrimSpace(ctx.params.CustomJoin))
	return out.String(), nil
}

// renderExplicitJoin renders one requested join, dispatching on the
// relation kind. A target with no matching relation joins a raw table; a
// raw join with no conditions renders nothing.
func (ctx *buildContext) renderExplicitJoin(j Join, joinType string) (string, error) {
	alias := ctx.joinAlias(j)
	conds := mergeConditions(j.Conditions, ctx.params.JoinConditions[alias])

	rel, ok := ctx.entity.Relation(j.Target)
	if !ok {
		if len(conds) == 0 {
			return "", nil
		}
		return fmt.Sprintf("%s %s AS %s ON %s",
			joinType, Quote(ToTableName(j.Target)), Quote(alias),
			renderEqualityConditions(alias, conds)), nil
	}

	switch rel.Type {
	case metadata.RelationManyMany:
		return ctx.renderManyManyJoin(rel, alias, conds, j.OnlyMiddle, joinType)

	case metadata.RelationHasMany, metadata.RelationHasOne:
		sql := ctx.renderHasJoin(rel, alias, conds)
		if joinType == "JOIN" {
			sql = strings.TrimPrefix(sql, "LEFT ")
		}
		return sql, nil

	case metadata.RelationHasChildren:
		return ctx.renderHasChildrenJoin(rel, alias, conds, joinType), nil

	case metadata.RelationBelongsTo:
		sql := ctx.renderBelongsToJoin(rel, alias)
		if joinType == "JOIN" {
			sql = strings.TrimPrefix(sql, "LEFT ")
		}
		return sql, nil

	default:
		return "", fmt.Errorf("%w: relation %s.%s (%s) cannot be joined explicitly",
			ErrUnknownRelation, ctx.entity.Name(), rel.Name, rel.Type)
	}
}

// renderManyManyJoin joins the junction table first (aliased <alias>Middle,
// always filtered on deleted and any static relation conditions), then the
// distant table unless the caller asked for the junction only.
func (ctx *buildContext) renderManyManyJoin(rel *metadata.RelationDef, alias string, conds map[string]any, onlyMiddle bool, joinType string) (string, error) {
	if rel.RelationName == "" || rel.Entity == "" {
		return "", fmt.Errorf("%w: %s.%s missing junction metadata",
			metadata.ErrBadRelationDefinition, ctx.entity.Name(), rel.Name)
	}

	middle := alias + "Middle"
	junction := ToTableName(rel.RelationName)
	nearKey := rel.NearKey
	if nearKey == "" {
		nearKey = lowerFirst(ctx.entity.Name()) + "Id"
	}
	distantKey := rel.DistantKey
	if distantKey == "" {
		distantKey = lowerFirst(rel.Entity) + "Id"
	}

	on := newJoiner(" AND ")
	on.add(fmt.Sprintf("%s.%s = %s.id", middle, ToColumnName(nearKey), ctx.table))
	on.add(middle + ".deleted = 0")
	on.add(renderStaticConditions(middle, rel.Conditions))
	on.add(renderEqualityConditions(middle, conds))

	out := newJoiner(" ")
	out.add(fmt.Sprintf("%s %s AS %s ON %s", joinType, Quote(junction), Quote(middle), on))

	if !onlyMiddle {
		distant := ToTableName(rel.Entity)
		out.add(fmt.Sprintf("%s %s AS %s ON %s.id = %s.%s AND %s.deleted = 0",
			joinType, Quote(distant), Quote(alias), alias, middle, ToColumnName(distantKey), alias))
	}
	return out.String(), nil
}

// renderHasChildrenJoin adds the polymorphic type equality on top of the
// usual child join.
func (ctx *buildContext) renderHasChildrenJoin(rel *metadata.RelationDef, alias string, conds map[string]any, joinType string) string {
	table := ToTableName(rel.Entity)
	if rel.Entity == "" {
		// Polymorphic children live in the table named by the relation.
		table = ToTableName(rel.Name)
	}
	foreignKey := ToColumnName(rel.ForeignKeyOrDefault(ctx.entity.Name()))
	typeColumn := rel.ForeignType
	if typeColumn == "" {
		typeColumn = "parentType"
	}

	on := newJoiner(" AND ")
	on.add(fmt.Sprintf("%s.%s = %s.id", alias, foreignKey, ctx.table))
	on.add(fmt.Sprintf("%s.%s = %s", alias, ToColumnName(typeColumn), quoteString(ctx.entity.Name())))
	on.add(alias + ".deleted = 0")
	on.add(renderEqualityConditions(alias, conds))
	return fmt.Sprintf("%s %s AS %s ON %s", joinType, Quote(table), Quote(alias), on)
}

// renderEqualityConditions renders a sorted equality filter map on an alias.
func renderEqualityConditions(alias string, conds map[string]any) string {
	if len(conds) == 0 {
		return ""
	}
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := newJoiner(" AND ")
	for _, k := range keys {
		v := conds[k]
		col := alias + "." + ToColumnName(k)
		if v == nil {
			out.add(col + " IS NULL")
			continue
		}
		if vals, ok := toAnySlice(v); ok {
			out.add(col + " IN " + QuoteValueList(vals))
			continue
		}
		out.add(col + " = " + QuoteValue(v))
	}
	return out.String()
}

func renderStaticConditions(alias string, conds map[string]string) string {
	if len(conds) == 0 {
		return ""
	}
	anyConds := make(map[string]any, len(conds))
	for k, v := range conds {
		anyConds[k] = v
	}
	return renderEqualityConditions(alias, anyConds)
}

func mergeConditions(base map[string]any, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return merged
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
