package composer

import (
	"fmt"
	"strings"

	"github.com/quorm/quorm/metadata"
)

// Comparison operator suffixes, longest first so "!=s" wins over "!=".
var operatorSuffixes = []string{"!=s", "=s", "!=", "!*", "*", ">=", "<=", ">", "<", "="}

var symbolToSQL = map[string]string{
	"=":  "=",
	"!=": "<>",
	">":  ">",
	"<":  "<",
	">=": ">=",
	"<=": "<=",
	"*":  "LIKE",
	"!*": "NOT LIKE",
}

// buildWhere lowers a condition tree into a SQL boolean expression,
// threading side effects (extra joins, forced DISTINCT) through the build
// context. level counts connective nesting depth from 0 at the root.
func (ctx *buildContext) buildWhere(conds []Condition, op BoolOp, level int) (string, error) {
	parts := newJoiner(" " + string(op) + " ")
	for _, cond := range conds {
		sql, err := ctx.renderCondition(cond, level)
		if err != nil {
			return "", err
		}
		parts.add(sql)
	}
	return parts.String(), nil
}

func (ctx *buildContext) renderCondition(cond Condition, level int) (string, error) {
	switch cond.Op {
	case OpAnd, OpOr:
		inner, err := ctx.buildWhere(cond.Items, cond.Op, level+1)
		if err != nil || inner == "" {
			return inner, err
		}
		if len(cond.Items) > 1 {
			return "(" + inner + ")", nil
		}
		return inner, nil

	case OpNot:
		// Historical behavior carried over from stored filter definitions:
		// a NOT group nested deeper than one level is dropped, not an error.
		if level > 1 {
			return "", nil
		}
		return ctx.renderNotSubquery(cond.Items, level)

	default:
		return ctx.renderLeaf(cond, level)
	}
}

// renderNotSubquery rewrites a NOT group into an anti-join subquery over
// the same entity, inheriting the explicit join and custom-join context.
func (ctx *buildContext) renderNotSubquery(items []Condition, level int) (string, error) {
	sub := newBuildContext(ctx.c, ctx.entity, ctx.params)
	inner, err := sub.buildWhere(items, OpAnd, level+1)
	if err != nil {
		return "", err
	}
	if inner == "" {
		return "", nil
	}
	joins, err := sub.renderJoins()
	if err != nil {
		return "", err
	}

	q := newJoiner(" ")
	q.add("SELECT "+sub.table+".id", "FROM "+Quote(sub.table), joins, "WHERE "+inner)
	return ctx.table + ".id NOT IN (" + q.String() + ")", nil
}

func (ctx *buildContext) renderLeaf(cond Condition, level int) (string, error) {
	if cond.Type != "" {
		handler, ok := whereOps[cond.Type]
		if !ok {
			return "", fmt.Errorf("%w: where operator %q", ErrInvalidParams, cond.Type)
		}
		return handler(ctx, cond)
	}

	key := strings.TrimSpace(cond.Key)
	symbol := "="
	for _, suffix := range operatorSuffixes {
		if strings.HasSuffix(key, suffix) {
			symbol = suffix
			key = key[:len(key)-len(suffix)]
			break
		}
	}
	valueIsExpr := strings.HasSuffix(key, ":")
	if valueIsExpr {
		key = key[:len(key)-1]
	}
	return ctx.renderComparison(key, symbol, cond.Value, valueIsExpr)
}

// renderComparison renders a generic comparison leaf. The left side is an
// attribute or expression; the operator and value go through type-aware
// normalization (bool rendering, array -> IN, nil -> IS NULL).
func (ctx *buildContext) renderComparison(key, symbol string, value any, valueIsExpr bool) (string, error) {
	var (
		left string
		attr *metadata.AttributeDef
	)

	if strings.ContainsAny(key, ".:(") {
		var err error
		left, err = ctx.renderExpression(key)
		if err != nil {
			return "", err
		}
	} else {
		var ok bool
		attr, ok = ctx.entity.Attribute(key)
		if !ok {
			// Stored filters may reference attributes that no longer
			// exist; render an always-false predicate instead of failing.
			return "0", nil
		}

		if override, has := attr.Where[symbol]; has {
			return ctx.applyWhereOverride(override, value)
		}

		if attr.Type == metadata.TypeForeign {
			var err error
			left, err = ctx.renderForeignAttribute(attr)
			if err != nil {
				return "", err
			}
		} else {
			left = ctx.column(key)
		}
	}

	// Sub-query comparison: value is a nested select.
	if symbol == "=s" || symbol == "!=s" {
		sub, ok := value.(*Params)
		if !ok {
			return "", fmt.Errorf("%w: %q requires nested select params", ErrInvalidParams, key+symbol)
		}
		subSQL, err := ctx.c.Compose(KindSelect, sub)
		if err != nil {
			return "", err
		}
		op := "IN"
		if symbol == "!=s" {
			op = "NOT IN"
		}
		return left + " " + op + " (" + subSQL + ")", nil
	}

	if valueIsExpr {
		str, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %q requires a string expression value", ErrInvalidParams, key+":")
		}
		right, err := ctx.renderExpression(str)
		if err != nil {
			return "", err
		}
		return left + " " + symbolToSQL[symbol] + " " + right, nil
	}

	if vals, ok := toAnySlice(value); ok {
		switch symbol {
		case "=":
			if len(vals) == 0 {
				return "0", nil
			}
			return left + " IN " + QuoteValueList(vals), nil
		case "!=":
			if len(vals) == 0 {
				return "1", nil
			}
			return left + " NOT IN " + QuoteValueList(vals), nil
		default:
			return "", fmt.Errorf("%w: list value with operator %q on %q", ErrInvalidParams, symbol, key)
		}
	}

	if value == nil {
		switch symbol {
		case "=":
			return left + " IS NULL", nil
		case "!=":
			return left + " IS NOT NULL", nil
		default:
			return "0", nil
		}
	}

	return left + " " + symbolToSQL[symbol] + " " + QuoteValue(value), nil
}

// applyWhereOverride substitutes the metadata-declared predicate for an
// operator, merging its declared joins into the context and honoring its
// distinct requirement.
func (ctx *buildContext) applyWhereOverride(override *metadata.WhereOverride, value any) (string, error) {
	for _, spec := range override.Joins {
		if err := ctx.addDeclaredJoin(spec, false); err != nil {
			return "", err
		}
	}
	for _, spec := range override.LeftJoins {
		if err := ctx.addDeclaredJoin(spec, true); err != nil {
			return "", err
		}
	}
	if override.Distinct {
		ctx.setDistinct()
	}

	sql := override.SQL
	if strings.Contains(sql, "{value}") {
		rendered := QuoteValue(value)
		if vals, ok := toAnySlice(value); ok {
			rendered = QuoteValueList(vals)
		}
		sql = strings.ReplaceAll(sql, "{value}", rendered)
	}
	return sql, nil
}

func (ctx *buildContext) addDeclaredJoin(spec metadata.JoinSpec, left bool) error {
	j := Join{Target: spec.Relation, Alias: spec.Alias}
	// Duplicate alias registration is a no-op: first registration wins.
	if left {
		ctx.addLeftJoin(j)
	} else {
		ctx.addJoin(j)
	}
	return nil
}
