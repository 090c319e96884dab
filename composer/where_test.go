package composer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// whereSQL composes a minimal select around the given conditions and
// returns everything after WHERE.
func whereSQL(t *testing.T, c *Composer, conds ...Condition) string {
	t.Helper()
	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       conds,
	})
	_, where, found := strings.Cut(sql, " WHERE ")
	require.True(t, found, "no WHERE clause in %q", sql)
	return where
}

func TestWhere_SuffixOperators(t *testing.T) {
	c := testComposer(t)

	tests := []struct {
		cond Condition
		want string
	}{
		{Cmp("status", "New"), "lead.status = 'New'"},
		{Cmp("status!=", "New"), "lead.status <> 'New'"},
		{Cmp("amount>", 100), "lead.amount > 100"},
		{Cmp("amount>=", 100), "lead.amount >= 100"},
		{Cmp("amount<", 100), "lead.amount < 100"},
		{Cmp("amount<=", 100), "lead.amount <= 100"},
		{Cmp("name*", "A%"), "lead.name LIKE 'A%'"},
		{Cmp("name!*", "A%"), "lead.name NOT LIKE 'A%'"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, whereSQL(t, c, tt.cond))
	}
}

func TestWhere_ListValues(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "lead.status IN ('New', 'Assigned')",
		whereSQL(t, c, Cmp("status", []string{"New", "Assigned"})))
	assert.Equal(t, "lead.status NOT IN ('New')",
		whereSQL(t, c, Cmp("status!=", []string{"New"})))

	// Empty lists degrade to constant predicates.
	assert.Equal(t, "0", whereSQL(t, c, Cmp("status", []string{})))
	assert.Equal(t, "1", whereSQL(t, c, Cmp("status!=", []string{})))
}

func TestWhere_NilValues(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "lead.account_id IS NULL", whereSQL(t, c, Cmp("accountId", nil)))
	assert.Equal(t, "lead.account_id IS NOT NULL", whereSQL(t, c, Cmp("accountId!=", nil)))
}

func TestWhere_MissingAttributeIsFalse(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "0", whereSQL(t, c, Cmp("ghost", "x")))
}

func TestWhere_ExpressionKey(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "DATE_FORMAT(lead.created_at, '%Y-%m') = '2024-05'",
		whereSQL(t, c, Cmp("MONTH:createdAt", "2024-05")))
}

func TestWhere_ExpressionValue(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "lead.amount > (lead.amount * 0.5)",
		whereSQL(t, c, Cmp("amount:>", "MUL:(amount, 0.5)")))
}

func TestWhere_Override(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "lead.email_address_lower = LOWER('Foo@Bar')",
		whereSQL(t, c, Cmp("emailAddress", "Foo@Bar")))
}

func TestWhere_Connectives(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t, "(lead.status = 'New' OR lead.amount > 100)",
		whereSQL(t, c, Or(Cmp("status", "New"), Cmp("amount>", 100))))
	assert.Equal(t, "(lead.status = 'New' AND lead.amount > 100)",
		whereSQL(t, c, And(Cmp("status", "New"), Cmp("amount>", 100))))
}

func TestWhere_NotSubquery(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t,
		"lead.id NOT IN (SELECT lead.id FROM `lead` WHERE lead.status = 'New')",
		whereSQL(t, c, Not(Cmp("status", "New"))))

	// One connective deep still renders.
	assert.Equal(t,
		"lead.id NOT IN (SELECT lead.id FROM `lead` WHERE lead.status = 'New')",
		whereSQL(t, c, And(Not(Cmp("status", "New")))))
}

func TestWhere_DeepNotIsDropped(t *testing.T) {
	c := testComposer(t)

	where := whereSQL(t, c, And(Or(
		Not(Cmp("status", "New")),
		Cmp("name", "X"),
	)))
	assert.Equal(t, "(lead.name = 'X')", where)
	assert.NotContains(t, where, "NOT IN")
}

func TestWhere_Subselect(t *testing.T) {
	c := testComposer(t)

	sub := &Params{
		From:   "Lead",
		Select: []SelectItem{{Expr: "id"}},
		Where:  []Condition{Cmp("status", "Converted")},
	}
	assert.Equal(t,
		"lead.id IN (SELECT lead.id AS `id` FROM `lead` "+
			"WHERE lead.deleted = FALSE AND lead.status = 'Converted')",
		whereSQL(t, c, Cmp("id=s", sub)))
	assert.Equal(t,
		"lead.id NOT IN (SELECT lead.id AS `id` FROM `lead` "+
			"WHERE lead.deleted = FALSE AND lead.status = 'Converted')",
		whereSQL(t, c, Cmp("id!=s", sub)))
}

func TestWhere_NamedComparisons(t *testing.T) {
	c := testComposer(t)

	tests := []struct {
		cond Condition
		want string
	}{
		{CmpType("equals", "status", "New"), "lead.status = 'New'"},
		{CmpType("notEquals", "status", "New"), "lead.status <> 'New'"},
		{CmpType("in", "status", []string{"New"}), "lead.status IN ('New')"},
		{CmpType("notIn", "status", []string{"New"}), "lead.status NOT IN ('New')"},
		{CmpType("isNull", "accountId", nil), "lead.account_id IS NULL"},
		{CmpType("isNotNull", "accountId", nil), "lead.account_id IS NOT NULL"},
		{CmpType("isTrue", "deleted", nil), "lead.deleted = TRUE"},
		{CmpType("isFalse", "deleted", nil), "lead.deleted = FALSE"},
		{CmpType("contains", "name", "foo"), "lead.name LIKE '%foo%'"},
		{CmpType("notContains", "name", "foo"), "lead.name NOT LIKE '%foo%'"},
		{CmpType("startsWith", "name", "foo"), "lead.name LIKE 'foo%'"},
		{CmpType("endsWith", "name", "foo"), "lead.name LIKE '%foo'"},
		{CmpType("between", "amount", []int{10, 20}), "lead.amount BETWEEN 10 AND 20"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, whereSQL(t, c, tt.cond), "operator %s", tt.cond.Type)
	}
}

func TestWhere_UnknownOperator(t *testing.T) {
	c := testComposer(t)

	_, err := c.Compose(KindSelect, &Params{
		From:  "Lead",
		Where: []Condition{CmpType("bogus", "status", "New")},
	})
	require.Error(t, err)
	assert.True(t, IsInvalidParamsErr(err))
}

func TestWhere_IsLinked(t *testing.T) {
	c := testComposer(t)

	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       []Condition{CmpType("isLinked", "teams", nil)},
	})
	assert.True(t, strings.HasPrefix(sql, "SELECT DISTINCT "))
	assert.Contains(t, sql,
		"LEFT JOIN `team_lead` AS `teamsLinkedFilter1Middle` "+
			"ON teamsLinkedFilter1Middle.lead_id = lead.id "+
			"AND teamsLinkedFilter1Middle.deleted = 0")
	assert.Contains(t, sql,
		"LEFT JOIN `team` AS `teamsLinkedFilter1` "+
			"ON teamsLinkedFilter1.id = teamsLinkedFilter1Middle.team_id "+
			"AND teamsLinkedFilter1.deleted = 0")
	assert.Contains(t, sql, "WHERE teamsLinkedFilter1.id IS NOT NULL")
}

func TestWhere_IsNotLinked(t *testing.T) {
	c := testComposer(t)

	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       []Condition{CmpType("isNotLinked", "teams", nil)},
	})
	assert.Contains(t, sql, "WHERE teamsLinkedFilter1.id IS NULL")
}

func TestWhere_LinkedWith(t *testing.T) {
	c := testComposer(t)

	// belongsTo compares the local key directly.
	assert.Equal(t, "lead.account_id IN ('A1')",
		whereSQL(t, c, CmpType("linkedWith", "account", "A1")))

	// manyMany goes through the junction table.
	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       []Condition{CmpType("linkedWith", "teams", []string{"T1", "T2"})},
	})
	assert.Contains(t, sql,
		"LEFT JOIN `team_lead` AS `teamsFilter1Middle` "+
			"ON teamsFilter1Middle.lead_id = lead.id "+
			"AND teamsFilter1Middle.deleted = 0")
	assert.Contains(t, sql, "WHERE teamsFilter1Middle.team_id IN ('T1', 'T2')")
	assert.True(t, strings.HasPrefix(sql, "SELECT DISTINCT "))
	assert.NotContains(t, sql, "AS `teamsFilter1` ")

	// hasMany joins the child table and matches child ids.
	sql = mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       []Condition{CmpType("linkedWith", "emails", []string{"E1"})},
	})
	assert.Contains(t, sql,
		"LEFT JOIN `email` AS `emailsFilter1` "+
			"ON emailsFilter1.lead_id = lead.id AND emailsFilter1.deleted = 0")
	assert.Contains(t, sql, "WHERE emailsFilter1.id IN ('E1')")

	// No ids matches nothing.
	assert.Equal(t, "0", whereSQL(t, c, CmpType("linkedWith", "teams", []string{})))
}

func TestWhere_NotLinkedWith(t *testing.T) {
	c := testComposer(t)

	assert.Equal(t,
		"lead.id NOT IN (SELECT lead_id FROM `team_lead` "+
			"WHERE team_id IN ('T1') AND deleted = 0)",
		whereSQL(t, c, CmpType("notLinkedWith", "teams", "T1")))

	assert.Equal(t,
		"(lead.account_id IS NULL OR lead.account_id NOT IN ('A1'))",
		whereSQL(t, c, CmpType("notLinkedWith", "account", "A1")))

	// No ids matches everything.
	assert.Equal(t, "1", whereSQL(t, c, CmpType("notLinkedWith", "teams", []string{})))
}

func TestWhere_ColumnEquals(t *testing.T) {
	c := testComposer(t)

	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       []Condition{CmpType("columnEquals", "teamRole", "Manager")},
	})
	assert.Contains(t, sql,
		"LEFT JOIN `team_lead` AS `teamsMiddle` "+
			"ON teamsMiddle.lead_id = lead.id AND teamsMiddle.deleted = 0")
	assert.Contains(t, sql, "WHERE teamsMiddle.role = 'Manager'")
	assert.True(t, strings.HasPrefix(sql, "SELECT DISTINCT "))

	assert.Equal(t, "teamsMiddle.role IN ('Manager', 'Member')",
		whereSQL(t, c, CmpType("columnIn", "teamRole", []string{"Manager", "Member"})))
	assert.Equal(t, "teamsMiddle.role <> 'Manager'",
		whereSQL(t, c, CmpType("columnNotEquals", "teamRole", "Manager")))
}

func TestWhere_ArrayOperators(t *testing.T) {
	c := testComposer(t)

	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       []Condition{CmpType("arrayAnyOf", "tags", []string{"a", "b"})},
	})
	assert.Contains(t, sql,
		"LEFT JOIN `array_value` AS `arrayFilter1` "+
			"ON arrayFilter1.entity_id = lead.id "+
			"AND arrayFilter1.entity_type = 'Lead' "+
			"AND arrayFilter1.attribute = 'tags'")
	assert.Contains(t, sql, "WHERE arrayFilter1.value IN ('a', 'b')")

	sql = mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where:       []Condition{CmpType("arrayNoneOf", "tags", []string{"a"})},
	})
	assert.Contains(t, sql, "AND arrayFilter1.value IN ('a')")
	assert.Contains(t, sql, "WHERE arrayFilter1.id IS NULL")

	assert.Equal(t, "arrayFilter1.id IS NULL",
		whereSQL(t, c, CmpType("arrayIsEmpty", "tags", nil)))
	assert.Equal(t, "arrayFilter1.id IS NOT NULL",
		whereSQL(t, c, CmpType("arrayIsNotEmpty", "tags", nil)))
}

func TestWhere_SideJoinAliasesAreUnique(t *testing.T) {
	c := testComposer(t)

	sql := mustCompose(t, c, KindSelect, &Params{
		From:        "Lead",
		Select:      []SelectItem{{Expr: "id"}},
		WithDeleted: true,
		Where: []Condition{
			CmpType("isLinked", "teams", nil),
			CmpType("linkedWith", "teams", []string{"T1"}),
		},
	})
	assert.Contains(t, sql, "teamsLinkedFilter1")
	assert.Contains(t, sql, "teamsFilter2Middle")
}
