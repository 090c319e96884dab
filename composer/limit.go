package composer

import "strconv"

// LimitStrategy renders the dialect-specific LIMIT clause. The composer
// emits MySQL-flavored SQL otherwise; limit syntax is the one place the
// dialects the supported drivers speak genuinely diverge.
type LimitStrategy interface {
	// Name identifies the strategy, for configuration and logging.
	Name() string

	// Render returns the limit clause, or "" when neither bound is set.
	Render(limit, offset *int) string

	// SupportsWriteLimit reports whether UPDATE/DELETE may carry a limit.
	SupportsWriteLimit() bool
}

// MySQLLimit renders "LIMIT offset, limit". An offset with no limit uses
// the documented all-rows sentinel.
type MySQLLimit struct{}

func (MySQLLimit) Name() string { return "mysql" }

func (MySQLLimit) Render(limit, offset *int) string {
	switch {
	case limit == nil && offset == nil:
		return ""
	case limit == nil:
		return "LIMIT " + strconv.Itoa(*offset) + ", 18446744073709551615"
	case offset == nil:
		return "LIMIT " + strconv.Itoa(*limit)
	default:
		return "LIMIT " + strconv.Itoa(*offset) + ", " + strconv.Itoa(*limit)
	}
}

func (MySQLLimit) SupportsWriteLimit() bool { return true }

// PostgresLimit renders "LIMIT n OFFSET m". PostgreSQL has no limited
// UPDATE/DELETE form.
type PostgresLimit struct{}

func (PostgresLimit) Name() string { return "postgres" }

func (PostgresLimit) Render(limit, offset *int) string {
	out := newJoiner(" ")
	if limit != nil {
		out.add("LIMIT " + strconv.Itoa(*limit))
	}
	if offset != nil {
		out.add("OFFSET " + strconv.Itoa(*offset))
	}
	return out.String()
}

func (PostgresLimit) SupportsWriteLimit() bool { return false }
