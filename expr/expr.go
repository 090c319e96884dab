// Package expr parses the string expression mini-language used in select
// lists, where clauses and order specs.
//
// The grammar covers three shapes:
//
//	FUNC:(arg1, arg2, ...)    function call with parenthesized arguments
//	FUNC:arg                  function call with a single bare argument
//	relation.attribute        attribute reference, optionally path-qualified
//
// plus quoted string literals, numeric literals and the NULL/TRUE/FALSE
// keywords. Expressions are parsed once into a small typed AST; callers
// render SQL from nodes instead of re-scanning the string at every level.
//
// All functions are pure and perform no I/O.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is an expression tree node: Attribute, FunctionCall or Literal.
type Node interface {
	node()
}

// Attribute references an entity attribute, optionally through a relation
// path ("account.name").
type Attribute struct {
	Path string
}

// FunctionCall is a FUNC:(args...) invocation.
type FunctionCall struct {
	Name string
	Args []Node
}

// LiteralKind classifies a literal argument.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralNull
	LiteralBool
)

// Literal is a quoted string, a number, or one of NULL/TRUE/FALSE.
// Raw preserves the source text including quotes.
type Literal struct {
	Raw  string
	Kind LiteralKind
}

func (Attribute) node()    {}
func (FunctionCall) node() {}
func (Literal) node()      {}

// Parse parses a single expression. An empty string is an error.
func Parse(s string) (Node, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty expression")
	}
	return parseNode(s)
}

func parseNode(s string) (Node, error) {
	if name, rest, ok := splitFunction(s); ok {
		call := &FunctionCall{Name: name}
		for _, raw := range ParseArguments(rest) {
			arg, err := parseNode(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", name, err)
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil
	}

	if lit, ok := classifyLiteral(s); ok {
		return lit, nil
	}

	if !isAttributePath(s) {
		return nil, fmt.Errorf("malformed expression %q", s)
	}
	return &Attribute{Path: s}, nil
}

// splitFunction detects a leading FUNC: prefix and returns the function name
// and its argument text with optional enclosing parens stripped. A function
// name is upper-case letters, digits and underscores; anything else (for
// example a quoted string holding a colon) is not a call.
func splitFunction(s string) (name, args string, ok bool) {
	colon := strings.IndexByte(s, ':')
	if colon <= 0 {
		return "", "", false
	}
	name = s[:colon]
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return "", "", false
		}
	}
	args = strings.TrimSpace(s[colon+1:])
	if strings.HasPrefix(args, "(") && strings.HasSuffix(args, ")") && balanced(args) {
		args = args[1 : len(args)-1]
	}
	return name, args, true
}

// balanced reports whether s, which starts with "(" and ends with ")",
// closes its opening paren only at the very end. Quoting is respected so a
// ")" inside a string literal does not count.
func balanced(s string) bool {
	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
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
				return i == len(s)-1
			}
		}
	}
	return false
}

func classifyLiteral(s string) (*Literal, bool) {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return &Literal{Raw: s, Kind: LiteralString}, true
		}
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return &Literal{Raw: s, Kind: LiteralNumber}, true
	}
	switch strings.ToUpper(s) {
	case "NULL":
		return &Literal{Raw: s, Kind: LiteralNull}, true
	case "TRUE", "FALSE":
		return &Literal{Raw: s, Kind: LiteralBool}, true
	}
	return nil, false
}

func isAttributePath(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
