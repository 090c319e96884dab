package composer

import (
	"fmt"
	"strconv"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

// dateOps returns the relative date operators. Each renders a half-open
// range "(col >= start AND col < end)" anchored on the composer clock in
// the query's requested time zone, so list filters stay index-friendly.
func dateOps() map[string]whereOp {
	return map[string]whereOp{
		"ever":   func(*buildContext, Condition) (string, error) { return "1", nil },
		"on":     opOn,
		"notOn":  opNotOn,
		"after":  dateCompareOp(">"),
		"before": dateCompareOp("<"),

		"past":   opPast,
		"future": opFuture,
		"today": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			return today, today.AddDate(0, 0, 1)
		}),

		"lastSevenDays": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1)
		}),
		"lastXDays": dayCountRangeOp(func(today time.Time, n int) (time.Time, time.Time) {
			return today.AddDate(0, 0, -n+1), today.AddDate(0, 0, 1)
		}),
		"nextXDays": dayCountRangeOp(func(today time.Time, n int) (time.Time, time.Time) {
			return today, today.AddDate(0, 0, n+1)
		}),
		"olderThanXDays": opOlderThanXDays,
		"afterXDays":     opAfterXDays,

		"currentMonth": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			start := monthStart(today)
			return start, start.AddDate(0, 1, 0)
		}),
		"lastMonth": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			start := monthStart(today).AddDate(0, -1, 0)
			return start, start.AddDate(0, 1, 0)
		}),
		"nextMonth": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			start := monthStart(today).AddDate(0, 1, 0)
			return start, start.AddDate(0, 1, 0)
		}),

		"currentQuarter": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			start := quarterStart(today)
			return start, start.AddDate(0, 3, 0)
		}),
		"lastQuarter": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			start := quarterStart(today).AddDate(0, -3, 0)
			return start, start.AddDate(0, 3, 0)
		}),

		"currentYear": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			start := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, today.Location())
			return start, start.AddDate(1, 0, 0)
		}),
		"lastYear": dayRangeOp(func(today time.Time, _ int) (time.Time, time.Time) {
			start := time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, today.Location())
			return start, start.AddDate(1, 0, 0)
		}),

		"currentFiscalYear": dayRangeOp(func(today time.Time, shift int) (time.Time, time.Time) {
			start := fiscalYearStart(today, shift)
			return start, start.AddDate(1, 0, 0)
		}),
		"lastFiscalYear": dayRangeOp(func(today time.Time, shift int) (time.Time, time.Time) {
			start := fiscalYearStart(today, shift).AddDate(-1, 0, 0)
			return start, start.AddDate(1, 0, 0)
		}),
		"currentFiscalQuarter": dayRangeOp(func(today time.Time, shift int) (time.Time, time.Time) {
			start := fiscalQuarterStart(today, shift)
			return start, start.AddDate(0, 3, 0)
		}),
		"lastFiscalQuarter": dayRangeOp(func(today time.Time, shift int) (time.Time, time.Time) {
			start := fiscalQuarterStart(today, shift).AddDate(0, -3, 0)
			return start, start.AddDate(0, 3, 0)
		}),
	}
}

// queryTime is the composer clock moved into the query's time zone. An
// unknown zone name falls back to UTC rather than failing the query.
func (ctx *buildContext) queryTime() time.Time {
	loc := time.UTC
	if ctx.params.TimeZone != "" {
		if l, err := time.LoadLocation(ctx.params.TimeZone); err == nil {
			loc = l
		}
	}
	return ctx.c.now().In(loc)
}

func (ctx *buildContext) queryDay() time.Time {
	t := ctx.queryTime()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dateRange(col string, from, to time.Time) string {
	return "(" + col + " >= " + quoteString(from.Format(dateLayout)) +
		" AND " + col + " < " + quoteString(to.Format(dateLayout)) + ")"
}

func dayRangeOp(bounds func(today time.Time, fiscalShift int) (time.Time, time.Time)) whereOp {
	return func(ctx *buildContext, cond Condition) (string, error) {
		col, err := ctx.leftSide(cond.Key)
		if err != nil || col == "0" {
			return col, err
		}
		from, to := bounds(ctx.queryDay(), ctx.c.meta.FiscalYearShift())
		return dateRange(col, from, to), nil
	}
}

func dayCountRangeOp(bounds func(today time.Time, n int) (time.Time, time.Time)) whereOp {
	return func(ctx *buildContext, cond Condition) (string, error) {
		n, ok := intValue(cond.Value)
		if !ok || n < 1 {
			return "", fmt.Errorf("%w: %s requires a positive day count", ErrInvalidParams, cond.Type)
		}
		col, err := ctx.leftSide(cond.Key)
		if err != nil || col == "0" {
			return col, err
		}
		from, to := bounds(ctx.queryDay(), n)
		return dateRange(col, from, to), nil
	}
}

func opOlderThanXDays(ctx *buildContext, cond Condition) (string, error) {
	n, ok := intValue(cond.Value)
	if !ok || n < 1 {
		return "", fmt.Errorf("%w: olderThanXDays requires a positive day count", ErrInvalidParams)
	}
	col, err := ctx.leftSide(cond.Key)
	if err != nil || col == "0" {
		return col, err
	}
	boundary := ctx.queryDay().AddDate(0, 0, -n)
	return col + " < " + quoteString(boundary.Format(dateLayout)), nil
}

func opAfterXDays(ctx *buildContext, cond Condition) (string, error) {
	n, ok := intValue(cond.Value)
	if !ok || n < 1 {
		return "", fmt.Errorf("%w: afterXDays requires a positive day count", ErrInvalidParams)
	}
	col, err := ctx.leftSide(cond.Key)
	if err != nil || col == "0" {
		return col, err
	}
	boundary := ctx.queryDay().AddDate(0, 0, n)
	return col + " >= " + quoteString(boundary.Format(dateLayout)), nil
}

func opPast(ctx *buildContext, cond Condition) (string, error) {
	col, err := ctx.leftSide(cond.Key)
	if err != nil || col == "0" {
		return col, err
	}
	return col + " < " + quoteString(ctx.queryTime().Format(datetimeLayout)), nil
}

func opFuture(ctx *buildContext, cond Condition) (string, error) {
	col, err := ctx.leftSide(cond.Key)
	if err != nil || col == "0" {
		return col, err
	}
	return col + " >= " + quoteString(ctx.queryTime().Format(datetimeLayout)), nil
}

// opOn matches one calendar day. A date-only value becomes a day range so
// datetime columns match every timestamp within it.
func opOn(ctx *buildContext, cond Condition) (string, error) {
	col, err := ctx.leftSide(cond.Key)
	if err != nil || col == "0" {
		return col, err
	}
	s, ok := cond.Value.(string)
	if !ok {
		return "", fmt.Errorf("%w: on requires a date string", ErrInvalidParams)
	}
	if day, perr := time.Parse(dateLayout, s); perr == nil {
		return dateRange(col, day, day.AddDate(0, 0, 1)), nil
	}
	return col + " = " + quoteString(s), nil
}

func opNotOn(ctx *buildContext, cond Condition) (string, error) {
	inner, err := opOn(ctx, cond)
	if err != nil || inner == "0" {
		return inner, err
	}
	return "NOT " + parenthesize(inner), nil
}

func dateCompareOp(symbol string) whereOp {
	return func(ctx *buildContext, cond Condition) (string, error) {
		col, err := ctx.leftSide(cond.Key)
		if err != nil || col == "0" {
			return col, err
		}
		s, ok := cond.Value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s requires a date string", ErrInvalidParams, cond.Type)
		}
		return col + " " + symbol + " " + quoteString(s), nil
	}
}

func parenthesize(s string) string {
	if len(s) > 0 && s[0] == '(' {
		return s
	}
	return "(" + s + ")"
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func quarterStart(t time.Time) time.Time {
	month := time.Month(((int(t.Month())-1)/3)*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location())
}

// fiscalYearStart is the first day of the fiscal year containing t, where
// the fiscal year begins shift months after January.
func fiscalYearStart(t time.Time, shift int) time.Time {
	startMonth := shift + 1
	year := t.Year()
	if int(t.Month()) < startMonth {
		year--
	}
	return time.Date(year, time.Month(startMonth), 1, 0, 0, 0, 0, t.Location())
}

func fiscalQuarterStart(t time.Time, shift int) time.Time {
	fy := fiscalYearStart(t, shift)
	monthsIn := (12 + int(t.Month()) - int(fy.Month())) % 12
	return fy.AddDate(0, (monthsIn/3)*3, 0)
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}
