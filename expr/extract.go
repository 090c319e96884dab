package expr

import (
	"sort"
	"strings"
)

// ExtractAttributes returns the attribute references contained in an
// expression, sorted and deduplicated. Literals are excluded. Used for
// dependency analysis: a computed field referencing "account.name" needs a
// left join on account before it can be selected.
//
// Extraction is lenient: a fragment that fails to parse contributes no
// attributes rather than an error, matching how stored formulas are handled.
func ExtractAttributes(expression string) []string {
	set := make(map[string]struct{})
	collect(expression, set)

	out := make([]string, 0, len(set))
	for attr := range set {
		out = append(out, attr)
	}
	sort.Strings(out)
	return out
}

func collect(s string, set map[string]struct{}) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}

	if _, args, ok := splitFunction(s); ok {
		for _, arg := range ParseArguments(args) {
			collect(arg, set)
		}
		return
	}

	if _, ok := classifyLiteral(s); ok {
		return
	}
	if isAttributePath(s) {
		set[s] = struct{}{}
	}
}

// Attributes walks a parsed node and returns its attribute references,
// sorted and deduplicated.
func Attributes(n Node) []string {
	set := make(map[string]struct{})
	walk(n, set)

	out := make([]string, 0, len(set))
	for attr := range set {
		out = append(out, attr)
	}
	sort.Strings(out)
	return out
}

func walk(n Node, set map[string]struct{}) {
	switch v := n.(type) {
	case *Attribute:
		set[v.Path] = struct{}{}
	case *FunctionCall:
		for _, arg := range v.Args {
			walk(arg, set)
		}
	}
}
