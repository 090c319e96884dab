package composer

import (
	"strings"

	"github.com/quorm/quorm/metadata"
)

// renderOrder builds the ORDER BY expression list. Value-list ordering and
// enum attributes render through FIELD so the declared option order, not
// the lexical one, decides row order.
func (ctx *buildContext) renderOrder() (string, error) {
	out := newJoiner(", ")
	for _, item := range ctx.params.Order {
		sql, err := ctx.renderOrderItem(item)
		if err != nil {
			return "", err
		}
		out.add(sql)
	}
	return out.String(), nil
}

func (ctx *buildContext) renderOrderItem(item OrderItem) (string, error) {
	if len(item.Values) > 0 {
		col, err := ctx.orderTarget(item.Expr)
		if err != nil {
			return "", err
		}
		return renderFieldOrder(col, item.Values, item.Desc), nil
	}

	if !strings.ContainsAny(item.Expr, ".:(") {
		if attr, ok := ctx.entity.Attribute(item.Expr); ok {
			if len(attr.OrderColumns) > 0 {
				return ctx.renderCompositeOrder(attr, item.Desc)
			}
			if attr.Type == metadata.TypeEnum && len(attr.Options) > 0 {
				return renderFieldOrder(ctx.column(item.Expr), attr.Options, item.Desc), nil
			}
		}
	}

	col, err := ctx.orderTarget(item.Expr)
	if err != nil {
		return "", err
	}
	return col + direction(item.Desc), nil
}

func (ctx *buildContext) orderTarget(expr string) (string, error) {
	if strings.ContainsAny(expr, ".:(") {
		return ctx.renderExpression(expr)
	}
	if _, ok := ctx.entity.Attribute(expr); !ok {
		// An alias declared in the select list orders on itself.
		return Quote(SanitizeAlias(expr)), nil
	}
	return ctx.leftSide(expr)
}

// renderCompositeOrder expands an attribute whose ordering is declared over
// several underlying columns, applying one direction to all of them.
func (ctx *buildContext) renderCompositeOrder(attr *metadata.AttributeDef, desc bool) (string, error) {
	out := newJoiner(", ")
	for _, col := range attr.OrderColumns {
		target, err := ctx.orderTarget(col)
		if err != nil {
			return "", err
		}
		out.add(target + direction(desc))
	}
	return out.String(), nil
}

// renderFieldOrder orders a column by an explicit value list. MySQL FIELD
// returns 0 for values not in the list; reversing the list and sorting
// descending keeps the listed order while pushing unknown values last.
func renderFieldOrder(col string, values []string, desc bool) string {
	ordered := values
	if !desc {
		ordered = make([]string, len(values))
		for i, v := range values {
			ordered[len(values)-1-i] = v
		}
	}
	quoted := make([]string, len(ordered))
	for i, v := range ordered {
		quoted[i] = quoteString(v)
	}
	return "FIELD(" + col + ", " + strings.Join(quoted, ", ") + ") DESC"
}

func direction(desc bool) string {
	if desc {
		return " DESC"
	}
	return ""
}
