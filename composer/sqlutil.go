package composer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	sanitizeRe   = regexp.MustCompile(`[^A-Za-z0-9_]+`)
	camelBoundRe = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// Sanitize strips every character that is not legal in an identifier.
// Applied to aliases and attribute names that end up in generated SQL.
func Sanitize(s string) string {
	return sanitizeRe.ReplaceAllString(s, "")
}

// SanitizeAlias additionally lower-cases nothing but trims a leading digit
// run, which MySQL rejects as an unquoted alias start.
func SanitizeAlias(s string) string {
	s = Sanitize(s)
	return strings.TrimLeft(s, "0123456789")
}

// Quote wraps an identifier in backticks.
func Quote(ident string) string {
	return "`" + Sanitize(ident) + "`"
}

// ToColumnName converts a camelCase attribute name to its snake_case
// column name: "assignedUserId" -> "assigned_user_id".
func ToColumnName(attribute string) string {
	return strings.ToLower(camelBoundRe.ReplaceAllString(Sanitize(attribute), "${1}_${2}"))
}

// ToTableName converts an entity type name to its snake_case table name:
// "OpportunityContact" -> "opportunity_contact".
func ToTableName(entityType string) string {
	return ToColumnName(entityType)
}

// QuoteValue renders a Go value as a SQL literal. Strings are escaped by
// doubling single quotes and doubling backslashes, which is safe under both
// MySQL and Postgres string semantics.
func QuoteValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return quoteString(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return "'" + val.Format("2006-01-02 15:04:05") + "'"
	default:
		return quoteString(fmt.Sprintf("%v", val))
	}
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return "'" + s + "'"
}

// QuoteValueList renders a parenthesized literal list. An empty list yields
// "(NULL)" so that IN () never reaches the database.
func QuoteValueList(values []any) string {
	if len(values) == 0 {
		return "(NULL)"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = QuoteValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// toAnySlice normalizes the supported slice kinds of a condition value.
func toAnySlice(v any) ([]any, bool) {
	switch vals := v.(type) {
	case []any:
		return vals, true
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(vals))
		for i, n := range vals {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
