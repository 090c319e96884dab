package composer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// functionContext carries the per-query state a function render needs.
type functionContext struct {
	table    string
	distinct bool
}

// functionDef describes one allowed function: arity bounds and a renderer
// over already-rendered argument SQL. maxArgs of -1 means unbounded.
type functionDef struct {
	minArgs int
	maxArgs int
	render  func(args []string, fc functionContext) string
}

func infix(op string) functionDef {
	return functionDef{minArgs: 2, maxArgs: -1, render: func(args []string, _ functionContext) string {
		return "(" + strings.Join(args, " "+op+" ") + ")"
	}}
}

func comparison(op string) functionDef {
	return functionDef{minArgs: 2, maxArgs: 2, render: func(args []string, _ functionContext) string {
		return args[0] + " " + op + " " + args[1]
	}}
}

func plain(name string, min, max int) functionDef {
	return functionDef{minArgs: min, maxArgs: max, render: func(args []string, _ functionContext) string {
		return name + "(" + strings.Join(args, ", ") + ")"
	}}
}

func aggregate(name string) functionDef {
	return functionDef{minArgs: 1, maxArgs: 1, render: func(args []string, fc functionContext) string {
		arg := args[0]
		if name == "COUNT" && fc.distinct && arg != "*" {
			// Algebraic distinct rewrite: COUNT(DISTINCT expr) is not
			// available on every expression shape, but over rows fanned
			// out by a to-many join the duplicate factor of every group
			// equals COUNT(id) / COUNT(DISTINCT id).
			id := fc.table + ".id"
			return "COUNT(" + arg + ") * COUNT(DISTINCT " + id + ") / COUNT(" + id + ")"
		}
		return name + "(" + arg + ")"
	}}
}

func match(mode string) functionDef {
	return functionDef{minArgs: 2, maxArgs: -1, render: func(args []string, _ functionContext) string {
		cols := strings.Join(args[:len(args)-1], ", ")
		return "MATCH (" + cols + ") AGAINST (" + args[len(args)-1] + " IN " + mode + ")"
	}}
}

// functions is the closed allow-list. Dynamic fiscal names (YEAR_n,
// QUARTER_n) are resolved before this table is consulted.
var functions = map[string]functionDef{
	// Date bucketing and parts.
	"NOW":          plain("NOW", 0, 0),
	"DAY":          {1, 1, func(a []string, _ functionContext) string { return "DATE_FORMAT(" + a[0] + ", '%Y-%m-%d')" }},
	"MONTH":        {1, 1, func(a []string, _ functionContext) string { return "DATE_FORMAT(" + a[0] + ", '%Y-%m')" }},
	"MONTH_NUMBER": plain("MONTH", 1, 1),
	"WEEK":         {1, 1, func(a []string, _ functionContext) string { return "YEARWEEK(" + a[0] + ", 6)" }},
	"WEEK_0":       {1, 1, func(a []string, _ functionContext) string { return "YEARWEEK(" + a[0] + ", 6)" }},
	"WEEK_1":       {1, 1, func(a []string, _ functionContext) string { return "YEARWEEK(" + a[0] + ", 3)" }},
	"DAYOFMONTH":   plain("DAYOFMONTH", 1, 1),
	"DAYOFWEEK":    plain("DAYOFWEEK", 1, 1),
	"HOUR":         plain("HOUR", 1, 1),
	"MINUTE":       plain("MINUTE", 1, 1),
	"YEAR":         plain("YEAR", 1, 1),
	"QUARTER": {1, 1, func(a []string, _ functionContext) string {
		return "CONCAT(YEAR(" + a[0] + "), '_', QUARTER(" + a[0] + "))"
	}},

	// Math.
	"ADD":   infix("+"),
	"SUB":   infix("-"),
	"MUL":   infix("*"),
	"DIV":   infix("/"),
	"MOD":   infix("%"),
	"FLOOR": plain("FLOOR", 1, 1),
	"CEIL":  plain("CEIL", 1, 1),
	"ROUND": plain("ROUND", 1, 2),
	"ABS":   plain("ABS", 1, 1),

	// Comparison.
	"EQUAL":            comparison("="),
	"NOT_EQUAL":        comparison("<>"),
	"GREATER":          comparison(">"),
	"LESS":             comparison("<"),
	"GREATER_OR_EQUAL": comparison(">="),
	"LESS_OR_EQUAL":    comparison("<="),
	"LIKE":             comparison("LIKE"),
	"NOT_LIKE":         comparison("NOT LIKE"),
	"IN": {2, -1, func(a []string, _ functionContext) string {
		return a[0] + " IN (" + strings.Join(a[1:], ", ") + ")"
	}},
	"NOT_IN": {2, -1, func(a []string, _ functionContext) string {
		return a[0] + " NOT IN (" + strings.Join(a[1:], ", ") + ")"
	}},
	"IS_NULL":     {1, 1, func(a []string, _ functionContext) string { return a[0] + " IS NULL" }},
	"IS_NOT_NULL": {1, 1, func(a []string, _ functionContext) string { return a[0] + " IS NOT NULL" }},

	// Boolean combinators.
	"AND": infix("AND"),
	"OR":  infix("OR"),
	"NOT": {1, 1, func(a []string, _ functionContext) string { return "NOT (" + a[0] + ")" }},

	// Conditional.
	"IF":       plain("IF", 3, 3),
	"IFNULL":   plain("IFNULL", 2, 2),
	"NULLIF":   plain("NULLIF", 2, 2),
	"COALESCE": plain("COALESCE", 1, -1),

	// String.
	"CONCAT":      plain("CONCAT", 1, -1),
	"LOWER":       plain("LOWER", 1, 1),
	"UPPER":       plain("UPPER", 1, 1),
	"TRIM":        plain("TRIM", 1, 1),
	"CHAR_LENGTH": plain("CHAR_LENGTH", 1, 1),
	"LEFT":        plain("LEFT", 2, 2),
	"REPLACE":     plain("REPLACE", 3, 3),

	// Aggregation.
	"COUNT": aggregate("COUNT"),
	"SUM":   aggregate("SUM"),
	"AVG":   aggregate("AVG"),
	"MAX":   aggregate("MAX"),
	"MIN":   aggregate("MIN"),

	// Full text.
	"MATCH_BOOLEAN":         match("BOOLEAN MODE"),
	"MATCH_NATURALLANGUAGE": match("NATURAL LANGUAGE MODE"),
}

// renderFunction maps a function name and rendered arguments to a SQL
// fragment, validating the name against the allow-list and the arity
// against the function's bounds.
func renderFunction(name string, args []string, fc functionContext) (string, error) {
	if sql, ok, err := renderFiscalFunction(name, args); ok || err != nil {
		return sql, err
	}
	if name == "TZ" {
		return renderTZ(args)
	}

	def, ok := functions[name]
	if !ok {
		if strings.HasPrefix(name, "MATCH_") {
			return "", fmt.Errorf("%w: unknown full-text mode %s", ErrUnsupportedFunction, name)
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFunction, name)
	}
	if len(args) < def.minArgs || (def.maxArgs >= 0 && len(args) > def.maxArgs) {
		return "", fmt.Errorf("%w: %s got %d argument(s)", ErrBadArity, name, len(args))
	}
	return def.render(args, fc), nil
}

// renderFiscalFunction handles the dynamic YEAR_n / QUARTER_n names, where
// n is the fiscal year shift in months. A date in a month before the shifted
// boundary belongs to the previous year bucket.
func renderFiscalFunction(name string, args []string) (string, bool, error) {
	var shift int
	switch {
	case strings.HasPrefix(name, "YEAR_"):
		n, err := strconv.Atoi(name[len("YEAR_"):])
		if err != nil {
			return "", false, nil
		}
		shift = n
		if len(args) < 1 {
			return "", true, fmt.Errorf("%w: %s got %d argument(s)", ErrBadArity, name, len(args))
		}
		boundary := shift + 1
		a := args[0]
		return fmt.Sprintf("CASE WHEN MONTH(%s) >= %d THEN YEAR(%s) ELSE YEAR(%s) - 1 END",
			a, boundary, a, a), true, nil

	case strings.HasPrefix(name, "QUARTER_"):
		n, err := strconv.Atoi(name[len("QUARTER_"):])
		if err != nil {
			return "", false, nil
		}
		shift = n
		if len(args) < 1 {
			return "", true, fmt.Errorf("%w: %s got %d argument(s)", ErrBadArity, name, len(args))
		}
		boundary := shift + 1
		a := args[0]
		year := fmt.Sprintf("CASE WHEN MONTH(%s) >= %d THEN YEAR(%s) ELSE YEAR(%s) - 1 END", a, boundary, a, a)
		quarter := fmt.Sprintf("FLOOR(((12 + MONTH(%s) - %d) %% 12) / 3) + 1", a, boundary)
		return "CONCAT(" + year + ", '_', " + quarter + ")", true, nil
	}
	return "", false, nil
}

// renderTZ renders timezone conversion. The second argument is a numeric
// offset in hours, possibly arriving as a quoted literal; it becomes a
// +HH:MM / -HH:MM offset string.
func renderTZ(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%w: TZ got %d argument(s)", ErrBadArity, len(args))
	}
	offset, err := parseOffsetHours(args[1])
	if err != nil {
		return "", err
	}
	return "CONVERT_TZ(" + args[0] + ", '+00:00', '" + offset + "')", nil
}

func parseOffsetHours(arg string) (string, error) {
	s := strings.Trim(arg, "'\"")
	hours, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("%w: TZ offset %q is not numeric", ErrInvalidParams, arg)
	}
	sign := "+"
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	h := int(hours)
	m := int(math.Round((hours - float64(h)) * 60))
	return fmt.Sprintf("%s%02d:%02d", sign, h, m), nil
}
