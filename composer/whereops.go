package composer

import (
	"fmt"
	"strconv"

	"github.com/quorm/quorm/metadata"
)

// whereOp renders one named where operator into SQL, possibly registering
// side-effect joins on the context.
type whereOp func(ctx *buildContext, cond Condition) (string, error)

// whereOps is the named operator registry. Resolution is a map lookup; the
// explicit table replaces dynamic method-name dispatch so the supported set
// is visible in one place.
var whereOps map[string]whereOp

func init() {
	whereOps = map[string]whereOp{
		"equals":              symbolOp("="),
		"notEquals":           symbolOp("!="),
		"greaterThan":         symbolOp(">"),
		"lessThan":            symbolOp("<"),
		"greaterThanOrEquals": symbolOp(">="),
		"lessThanOrEquals":    symbolOp("<="),
		"like":                symbolOp("*"),
		"notLike":             symbolOp("!*"),
		"in":                  symbolOp("="),
		"notIn":               symbolOp("!="),

		"isNull":    constValueOp("=", nil),
		"isNotNull": constValueOp("!=", nil),
		"isTrue":    constValueOp("=", true),
		"isFalse":   constValueOp("=", false),

		"contains":    patternOp("*", "%%%s%%"),
		"notContains": patternOp("!*", "%%%s%%"),
		"startsWith":  patternOp("*", "%s%%"),
		"endsWith":    patternOp("*", "%%%s"),

		"between": opBetween,

		"isLinked":      opIsLinked,
		"isNotLinked":   opIsNotLinked,
		"linkedWith":    opLinkedWith,
		"notLinkedWith": opNotLinkedWith,

		"columnEquals":    columnOp("="),
		"columnNotEquals": columnOp("!="),
		"columnIn":        columnOp("="),
		"columnNotIn":     columnOp("!="),
		"columnLike":      columnOp("*"),

		"arrayAnyOf":      opArrayAnyOf,
		"arrayNoneOf":     opArrayNoneOf,
		"arrayIsEmpty":    opArrayIsEmpty,
		"arrayIsNotEmpty": opArrayIsNotEmpty,
	}
	for name, op := range dateOps() {
		whereOps[name] = op
	}
}

func symbolOp(symbol string) whereOp {
	return func(ctx *buildContext, cond Condition) (string, error) {
		return ctx.renderComparison(cond.Key, symbol, cond.Value, false)
	}
}

func constValueOp(symbol string, value any) whereOp {
	return func(ctx *buildContext, cond Condition) (string, error) {
		return ctx.renderComparison(cond.Key, symbol, value, false)
	}
}

func patternOp(symbol, pattern string) whereOp {
	return func(ctx *buildContext, cond Condition) (string, error) {
		s, ok := cond.Value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s requires a string value", ErrInvalidParams, cond.Type)
		}
		return ctx.renderComparison(cond.Key, symbol, fmt.Sprintf(pattern, s), false)
	}
}

func opBetween(ctx *buildContext, cond Condition) (string, error) {
	vals, ok := toAnySlice(cond.Value)
	if !ok || len(vals) != 2 {
		return "", fmt.Errorf("%w: between requires a two-element value", ErrInvalidParams)
	}
	left, err := ctx.leftSide(cond.Key)
	if err != nil || left == "0" {
		return left, err
	}
	return left + " BETWEEN " + QuoteValue(vals[0]) + " AND " + QuoteValue(vals[1]), nil
}

// leftSide resolves the left side of a leaf exactly as renderComparison
// does, without committing to an operator.
func (ctx *buildContext) leftSide(key string) (string, error) {
	if containsAnyOf(key, ".:(") {
		return ctx.renderExpression(key)
	}
	attr, ok := ctx.entity.Attribute(key)
	if !ok {
		return "0", nil
	}
	if attr.Type == metadata.TypeForeign {
		return ctx.renderForeignAttribute(attr)
	}
	return ctx.column(key), nil
}

func containsAnyOf(s, chars string) bool {
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(chars); j++ {
			if s[i] == chars[j] {
				return true
			}
		}
	}
	return false
}

// opIsLinked checks relation-row existence through a uniquely aliased left
// join. The join fans out rows, so DISTINCT is forced.
func opIsLinked(ctx *buildContext, cond Condition) (string, error) {
	alias, err := ctx.linkedFilterJoin(cond.Key)
	if err != nil {
		return "", err
	}
	ctx.setDistinct()
	return alias + ".id IS NOT NULL", nil
}

func opIsNotLinked(ctx *buildContext, cond Condition) (string, error) {
	alias, err := ctx.linkedFilterJoin(cond.Key)
	if err != nil {
		return "", err
	}
	ctx.setDistinct()
	return alias + ".id IS NULL", nil
}

// linkedFilterJoin registers a uniquely aliased left join over a relation
// for existence checks, returning the distant alias.
func (ctx *buildContext) linkedFilterJoin(relation string) (string, error) {
	if _, ok := ctx.entity.Relation(relation); !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownRelation, ctx.entity.Name(), relation)
	}
	alias := SanitizeAlias(relation) + "LinkedFilter" + strconv.Itoa(ctx.nextSeq())

	sql, err := ctx.renderExplicitJoin(Join{Target: relation, Alias: alias}, "LEFT JOIN")
	if err != nil {
		return "", err
	}
	ctx.addSideJoin(alias, sql)
	return alias, nil
}

func conditionValues(v any) []any {
	if vals, ok := toAnySlice(v); ok {
		return vals
	}
	if v == nil {
		return nil
	}
	return []any{v}
}

// opLinkedWith matches records linked to any of the given foreign ids.
func opLinkedWith(ctx *buildContext, cond Condition) (string, error) {
	rel, ok := ctx.entity.Relation(cond.Key)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownRelation, ctx.entity.Name(), cond.Key)
	}
	ids := conditionValues(cond.Value)
	if len(ids) == 0 {
		return "0", nil
	}

	switch rel.Type {
	case metadata.RelationBelongsTo:
		return ctx.column(rel.KeyOrDefault(ctx.entity.Name())) + " IN " + QuoteValueList(ids), nil

	case metadata.RelationBelongsToParent:
		return ctx.column(rel.Name+"Id") + " IN " + QuoteValueList(ids), nil

	case metadata.RelationManyMany:
		alias := SanitizeAlias(cond.Key) + "Filter" + strconv.Itoa(ctx.nextSeq())
		sql, err := ctx.renderExplicitJoin(Join{Target: cond.Key, Alias: alias, OnlyMiddle: true}, "LEFT JOIN")
		if err != nil {
			return "", err
		}
		ctx.addSideJoin(alias, sql)
		ctx.setDistinct()
		distantKey := rel.DistantKey
		if distantKey == "" {
			distantKey = lowerFirst(rel.Entity) + "Id"
		}
		return alias + "Middle." + ToColumnName(distantKey) + " IN " + QuoteValueList(ids), nil

	case metadata.RelationHasMany, metadata.RelationHasChildren:
		alias := SanitizeAlias(cond.Key) + "Filter" + strconv.Itoa(ctx.nextSeq())
		sql, err := ctx.renderExplicitJoin(Join{Target: cond.Key, Alias: alias}, "LEFT JOIN")
		if err != nil {
			return "", err
		}
		ctx.addSideJoin(alias, sql)
		ctx.setDistinct()
		return alias + ".id IN " + QuoteValueList(ids), nil

	default:
		return "", fmt.Errorf("%w: linkedWith unsupported for %s relation %s",
			ErrInvalidParams, rel.Type, cond.Key)
	}
}

// opNotLinkedWith is the absence counterpart, rendered as an anti-join
// subquery so unrelated links do not mask the check.
func opNotLinkedWith(ctx *buildContext, cond Condition) (string, error) {
	rel, ok := ctx.entity.Relation(cond.Key)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownRelation, ctx.entity.Name(), cond.Key)
	}
	ids := conditionValues(cond.Value)
	if len(ids) == 0 {
		return "1", nil
	}

	switch rel.Type {
	case metadata.RelationBelongsTo:
		key := ctx.column(rel.KeyOrDefault(ctx.entity.Name()))
		return "(" + key + " IS NULL OR " + key + " NOT IN " + QuoteValueList(ids) + ")", nil

	case metadata.RelationManyMany:
		nearKey := rel.NearKey
		if nearKey == "" {
			nearKey = lowerFirst(ctx.entity.Name()) + "Id"
		}
		distantKey := rel.DistantKey
		if distantKey == "" {
			distantKey = lowerFirst(rel.Entity) + "Id"
		}
		return fmt.Sprintf("%s.id NOT IN (SELECT %s FROM %s WHERE %s IN %s AND deleted = 0)",
			ctx.table, ToColumnName(nearKey), Quote(ToTableName(rel.RelationName)),
			ToColumnName(distantKey), QuoteValueList(ids)), nil

	case metadata.RelationHasMany, metadata.RelationHasChildren:
		foreignKey := ToColumnName(rel.ForeignKeyOrDefault(ctx.entity.Name()))
		table := rel.Entity
		if table == "" {
			table = rel.Name
		}
		return fmt.Sprintf("%s.id NOT IN (SELECT %s FROM %s WHERE id IN %s AND deleted = 0)",
			ctx.table, foreignKey, Quote(ToTableName(table)), QuoteValueList(ids)), nil

	default:
		return "", fmt.Errorf("%w: notLinkedWith unsupported for %s relation %s",
			ErrInvalidParams, rel.Type, cond.Key)
	}
}

// columnOp filters on a column stored on a relation's junction table, found
// through the attribute's declared link/column pair.
func columnOp(symbol string) whereOp {
	return func(ctx *buildContext, cond Condition) (string, error) {
		attr, ok := ctx.entity.Attribute(cond.Key)
		if !ok {
			return "0", nil
		}
		if attr.Link == "" || attr.Column == "" {
			return "", fmt.Errorf("%w: attribute %s.%s has no link column metadata",
				ErrInvalidParams, ctx.entity.Name(), cond.Key)
		}
		rel, ok := ctx.entity.Relation(attr.Link)
		if !ok || rel.Type != metadata.RelationManyMany {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownRelation, ctx.entity.Name(), attr.Link)
		}

		alias := ctx.c.aliases.Alias(ctx.entity, rel.Name)
		middle := alias + "Middle"
		if !ctx.hasAlias(alias) {
			sql, err := ctx.renderExplicitJoin(Join{Target: rel.Name, Alias: alias, OnlyMiddle: true}, "LEFT JOIN")
			if err != nil {
				return "", err
			}
			ctx.addSideJoin(alias, sql)
		}
		ctx.setDistinct()

		col := middle + "." + ToColumnName(attr.Column)
		switch symbol {
		case "=":
			if vals, ok := toAnySlice(cond.Value); ok {
				return col + " IN " + QuoteValueList(vals), nil
			}
			return col + " = " + QuoteValue(cond.Value), nil
		case "!=":
			if vals, ok := toAnySlice(cond.Value); ok {
				return col + " NOT IN " + QuoteValueList(vals), nil
			}
			return col + " <> " + QuoteValue(cond.Value), nil
		default:
			return col + " LIKE " + QuoteValue(cond.Value), nil
		}
	}
}

// Array attribute filters run against the generic attribute-value side
// table keyed by owner id, owner type and attribute name.
const arrayValueTable = "array_value"

func (ctx *buildContext) arrayFilterJoin(attribute string, valueFilter []any) string {
	alias := "arrayFilter" + strconv.Itoa(ctx.nextSeq())

	on := newJoiner(" AND ")
	on.add(alias + ".entity_id = " + ctx.table + ".id")
	on.add(alias + ".entity_type = " + quoteString(ctx.entity.Name()))
	on.add(alias + ".attribute = " + quoteString(attribute))
	if valueFilter != nil {
		on.add(alias + ".value IN " + QuoteValueList(valueFilter))
	}

	sql := fmt.Sprintf("LEFT JOIN %s AS %s ON %s", Quote(arrayValueTable), Quote(alias), on)
	ctx.addSideJoin(alias, sql)
	return alias
}

func opArrayAnyOf(ctx *buildContext, cond Condition) (string, error) {
	vals := conditionValues(cond.Value)
	if len(vals) == 0 {
		return "0", nil
	}
	alias := ctx.arrayFilterJoin(cond.Key, nil)
	ctx.setDistinct()
	return alias + ".value IN " + QuoteValueList(vals), nil
}

func opArrayNoneOf(ctx *buildContext, cond Condition) (string, error) {
	vals := conditionValues(cond.Value)
	if len(vals) == 0 {
		return "1", nil
	}
	// Matching values are pulled into the join condition so the predicate
	// can assert absence on the left-joined row.
	alias := ctx.arrayFilterJoin(cond.Key, vals)
	return alias + ".id IS NULL", nil
}

func opArrayIsEmpty(ctx *buildContext, cond Condition) (string, error) {
	alias := ctx.arrayFilterJoin(cond.Key, nil)
	return alias + ".id IS NULL", nil
}

func opArrayIsNotEmpty(ctx *buildContext, cond Condition) (string, error) {
	alias := ctx.arrayFilterJoin(cond.Key, nil)
	ctx.setDistinct()
	return alias + ".id IS NOT NULL", nil
}
