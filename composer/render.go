package composer

import (
	"fmt"
	"strings"

	"github.com/quorm/quorm/expr"
	"github.com/quorm/quorm/metadata"
)

// renderExpression parses and renders an expression string
// ("MONTH:createdAt", "account.name", "CONCAT:(firstName, ' ', lastName)").
func (ctx *buildContext) renderExpression(s string) (string, error) {
	node, err := expr.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return ctx.renderNode(node)
}

func (ctx *buildContext) renderNode(n expr.Node) (string, error) {
	switch v := n.(type) {
	case *expr.Literal:
		return renderLiteral(v), nil

	case *expr.Attribute:
		return ctx.renderAttributePath(v.Path)

	case *expr.FunctionCall:
		args := make([]string, 0, len(v.Args))
		for _, arg := range v.Args {
			sql, err := ctx.renderNode(arg)
			if err != nil {
				return "", err
			}
			args = append(args, sql)
		}
		return renderFunction(v.Name, args, functionContext{
			table:    ctx.table,
			distinct: ctx.distinct || ctx.params.Distinct,
		})

	default:
		return "", fmt.Errorf("%w: unknown expression node", ErrInvalidParams)
	}
}

func renderLiteral(l *expr.Literal) string {
	switch l.Kind {
	case expr.LiteralString:
		// Normalize double-quoted source literals to SQL single quotes.
		if strings.HasPrefix(l.Raw, `"`) {
			return quoteString(strings.Trim(l.Raw, `"`))
		}
		return l.Raw
	case expr.LiteralNull, expr.LiteralBool:
		return strings.ToUpper(l.Raw)
	default:
		return l.Raw
	}
}

// renderAttributePath renders an attribute reference. A dotted path
// ("account.name") resolves through the named relation's join alias,
// registering an implicit belongs-to join when needed. A plain name
// resolves against the base entity.
func (ctx *buildContext) renderAttributePath(path string) (string, error) {
	if dot := strings.IndexByte(path, '.'); dot >= 0 {
		first, attrName := path[:dot], path[dot+1:]

		if rel, ok := ctx.entity.Relation(first); ok {
			alias, err := ctx.ensureRelationAlias(rel)
			if err != nil {
				return "", err
			}
			return alias + "." + ToColumnName(attrName), nil
		}
		// Not a relation: trust the caller that it names a joined alias.
		return SanitizeAlias(first) + "." + ToColumnName(attrName), nil
	}

	attr, ok := ctx.entity.Attribute(path)
	if ok && attr.Type == metadata.TypeForeign {
		return ctx.renderForeignAttribute(attr)
	}
	return ctx.column(path), nil
}

// renderForeignAttribute projects a foreign attribute through its
// relation's join. A multi-column projection concatenates the foreign
// columns with null-coalescing.
func (ctx *buildContext) renderForeignAttribute(attr *metadata.AttributeDef) (string, error) {
	rel, ok := ctx.entity.Relation(attr.Relation)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s references relation %q",
			ErrUnknownRelation, ctx.entity.Name(), attr.Name, attr.Relation)
	}
	if rel.NoJoin {
		return "NULL", nil
	}

	alias, err := ctx.ensureRelationAlias(rel)
	if err != nil {
		return "", err
	}

	cols := attr.Foreign
	if len(cols) == 0 {
		cols = metadata.StringList{"name"}
	}
	if len(cols) == 1 {
		return alias + "." + ToColumnName(cols[0]), nil
	}

	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = "IFNULL(" + alias + "." + ToColumnName(col) + ", '')"
	}
	return "TRIM(CONCAT(" + strings.Join(parts, ", ' ', ") + "))", nil
}
