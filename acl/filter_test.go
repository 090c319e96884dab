package acl

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorm/quorm/composer"
	"github.com/quorm/quorm/metadata"
)

func filterRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry(0)
	lead, err := metadata.NewEntityDef("Lead",
		[]metadata.AttributeDef{
			{Name: "id", Type: metadata.TypeVarchar},
			{Name: "name", Type: metadata.TypeVarchar},
			{Name: "assignedUserId", Type: metadata.TypeVarchar},
			{Name: "deleted", Type: metadata.TypeBool},
		},
		[]metadata.RelationDef{
			{Name: "teams", Type: metadata.RelationManyMany, Entity: "Team", RelationName: "TeamLead"},
		})
	require.NoError(t, err)
	reg.Register(lead)
	return reg
}

func filterEvaluator(t *testing.T, user User, leadData string) *Evaluator {
	t.Helper()
	provider := &fakeRoleProvider{}
	if leadData != "" {
		provider.userRoles = []Role{{ID: "r1", Data: json.RawMessage(leadData)}}
	}
	return NewEvaluator(user, provider, nil)
}

func TestAccessFilter_TeamLevel(t *testing.T) {
	eval := filterEvaluator(t,
		User{ID: "u1", TeamIDs: []string{"T1"}},
		`{"Lead": {"read": "team"}}`)

	params := composer.Params{
		From:   "Lead",
		Select: []composer.SelectItem{{Expr: "id"}},
	}
	NewAccessFilter(eval).Apply(&params, "Lead", ActionRead)

	sql, err := composer.New(filterRegistry(t)).Compose(composer.KindSelect, &params)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "SELECT DISTINCT "))
	assert.Contains(t, sql,
		"LEFT JOIN `team_lead` AS `teamsAccessMiddle` "+
			"ON teamsAccessMiddle.lead_id = lead.id AND teamsAccessMiddle.deleted = 0")
	assert.Contains(t, sql,
		"LEFT JOIN `team` AS `teamsAccess` "+
			"ON teamsAccess.id = teamsAccessMiddle.team_id AND teamsAccess.deleted = 0")
	assert.Contains(t, sql,
		"WHERE lead.deleted = FALSE "+
			"AND (teamsAccess.id IN ('T1') OR lead.assigned_user_id = 'u1')")
}

func TestAccessFilter_OwnLevel(t *testing.T) {
	eval := filterEvaluator(t, User{ID: "u1"}, `{"Lead": {"read": "own"}}`)

	params := composer.Params{
		From:   "Lead",
		Select: []composer.SelectItem{{Expr: "id"}},
	}
	NewAccessFilter(eval).Apply(&params, "Lead", ActionRead)

	sql, err := composer.New(filterRegistry(t)).Compose(composer.KindSelect, &params)
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE lead.deleted = FALSE AND lead.assigned_user_id = 'u1'")
	assert.NotContains(t, sql, "JOIN")
}

func TestAccessFilter_NoAccess(t *testing.T) {
	eval := filterEvaluator(t, User{ID: "u1"}, `{"Lead": false}`)

	params := composer.Params{
		From:   "Lead",
		Select: []composer.SelectItem{{Expr: "id"}},
	}
	NewAccessFilter(eval).Apply(&params, "Lead", ActionRead)

	sql, err := composer.New(filterRegistry(t)).Compose(composer.KindSelect, &params)
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE lead.deleted = FALSE AND 0")
}

func TestAccessFilter_AllLevelUntouched(t *testing.T) {
	eval := filterEvaluator(t, User{ID: "u1"}, `{"Lead": {"read": "all"}}`)

	params := composer.Params{From: "Lead"}
	NewAccessFilter(eval).Apply(&params, "Lead", ActionRead)

	assert.Empty(t, params.Where)
	assert.Empty(t, params.LeftJoins)
	assert.False(t, params.Distinct)
}

func TestAccessFilter_UnknownScopeUntouched(t *testing.T) {
	eval := filterEvaluator(t, User{ID: "u1"}, "")

	params := composer.Params{From: "Lead"}
	NewAccessFilter(eval).Apply(&params, "Lead", ActionRead)

	assert.Empty(t, params.Where)
}

func TestAccessFilter_AdminUntouched(t *testing.T) {
	eval := filterEvaluator(t, User{ID: "a1", IsAdmin: true}, `{"Lead": false}`)

	params := composer.Params{From: "Lead"}
	NewAccessFilter(eval).Apply(&params, "Lead", ActionRead)

	assert.Empty(t, params.Where)
	assert.Empty(t, params.LeftJoins)
}
