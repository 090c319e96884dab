package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The fixture clock reads 2024-05-15 10:30 UTC and the fiscal year starts
// in April (shift 3).
func TestWhere_DateRanges(t *testing.T) {
	c := testComposer(t)

	tests := []struct {
		op   string
		want string
	}{
		{"today", "(lead.close_date >= '2024-05-15' AND lead.close_date < '2024-05-16')"},
		{"lastSevenDays", "(lead.close_date >= '2024-05-09' AND lead.close_date < '2024-05-16')"},
		{"currentMonth", "(lead.close_date >= '2024-05-01' AND lead.close_date < '2024-06-01')"},
		{"lastMonth", "(lead.close_date >= '2024-04-01' AND lead.close_date < '2024-05-01')"},
		{"nextMonth", "(lead.close_date >= '2024-06-01' AND lead.close_date < '2024-07-01')"},
		{"currentQuarter", "(lead.close_date >= '2024-04-01' AND lead.close_date < '2024-07-01')"},
		{"lastQuarter", "(lead.close_date >= '2024-01-01' AND lead.close_date < '2024-04-01')"},
		{"currentYear", "(lead.close_date >= '2024-01-01' AND lead.close_date < '2025-01-01')"},
		{"lastYear", "(lead.close_date >= '2023-01-01' AND lead.close_date < '2024-01-01')"},
		{"currentFiscalYear", "(lead.close_date >= '2024-04-01' AND lead.close_date < '2025-04-01')"},
		{"lastFiscalYear", "(lead.close_date >= '2023-04-01' AND lead.close_date < '2024-04-01')"},
		{"currentFiscalQuarter", "(lead.close_date >= '2024-04-01' AND lead.close_date < '2024-07-01')"},
		{"lastFiscalQuarter", "(lead.close_date >= '2024-01-01' AND lead.close_date < '2024-04-01')"},
		{"ever", "1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, whereSQL(t, c, CmpType(tt.op, "closeDate", nil)), "operator %s", tt.op)
	}
}

func TestWhere_DayCountRanges(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t,
		"(lead.close_date >= '2024-04-16' AND lead.close_date < '2024-05-16')",
		whereSQL(t, c, CmpType("lastXDays", "closeDate", 30)))
	assert.Equal(t,
		"(lead.close_date >= '2024-05-15' AND lead.close_date < '2024-05-23')",
		whereSQL(t, c, CmpType("nextXDays", "closeDate", 7)))
	assert.Equal(t,
		"lead.close_date < '2024-04-15'",
		whereSQL(t, c, CmpType("olderThanXDays", "closeDate", 30)))
	assert.Equal(t,
		"lead.close_date >= '2024-05-25'",
		whereSQL(t, c, CmpType("afterXDays", "closeDate", 10)))

	for _, v := range []any{0, -1, "x", nil} {
		_, err := c.Compose(KindSelect, &Params{
			From:  "Lead",
			Where: []Condition{CmpType("lastXDays", "closeDate", v)},
		})
		require.Error(t, err)
		assert.True(t, IsInvalidParamsErr(err))
	}
}

func TestWhere_PastFuture(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "lead.created_at < '2024-05-15 10:30:00'",
		whereSQL(t, c, CmpType("past", "createdAt", nil)))
	assert.Equal(t, "lead.created_at >= '2024-05-15 10:30:00'",
		whereSQL(t, c, CmpType("future", "createdAt", nil)))
}

func TestWhere_OnNotOn(t *testing.T) {
	c := testComposer(t)

	// A date-only value expands to a day range so datetime columns match.
	assert.Equal(t,
		"(lead.created_at >= '2024-03-01' AND lead.created_at < '2024-03-02')",
		whereSQL(t, c, CmpType("on", "createdAt", "2024-03-01")))
	assert.Equal(t,
		"lead.created_at = '2024-03-01 12:00:00'",
		whereSQL(t, c, CmpType("on", "createdAt", "2024-03-01 12:00:00")))
	assert.Equal(t,
		"NOT (lead.created_at >= '2024-03-01' AND lead.created_at < '2024-03-02')",
		whereSQL(t, c, CmpType("notOn", "createdAt", "2024-03-01")))
	assert.Equal(t,
		"lead.close_date > '2024-03-01'",
		whereSQL(t, c, CmpType("after", "closeDate", "2024-03-01")))
	assert.Equal(t,
		"lead.close_date < '2024-03-01'",
		whereSQL(t, c, CmpType("before", "closeDate", "2024-03-01")))
}

func TestWhere_DateRangeTimeZone(t *testing.T) {
	c := testComposer(t)

	// UTC+14: 2024-05-15 10:30 UTC is already the 16th there.
	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		TimeZone:    "Pacific/Kiritimati",
		Where:       []Condition{CmpType("today", "closeDate", nil)},
	})
	assert.Contains(t, sql,
		"(lead.close_date >= '2024-05-16' AND lead.close_date < '2024-05-17')")

	// An unknown zone falls back to UTC.
	sql = mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		TimeZone:    "Nowhere/Invalid",
		Where:       []Condition{CmpType("today", "closeDate", nil)},
	})
	assert.Contains(t, sql,
		"(lead.close_date >= '2024-05-15' AND lead.close_date < '2024-05-16')")
}

func TestWhere_DateRangeMissingAttribute(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "0", whereSQL(t, c, CmpType("today", "ghost", nil)))
}
