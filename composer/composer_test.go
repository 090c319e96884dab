package composer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quorm/quorm/metadata"
)

// testClock pins date-relative filters to a known instant.
var testClock = func() time.Time {
	return time.Date(2024, time.May, 15, 10, 30, 0, 0, time.UTC)
}

func testRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry(3)

	lead, err := metadata.NewEntityDef("Lead",
		[]metadata.AttributeDef{
			{Name: "id", Type: metadata.TypeVarchar},
			{Name: "name", Type: metadata.TypeVarchar},
			{Name: "status", Type: metadata.TypeEnum, Options: []string{"New", "Assigned", "In Process", "Converted"}},
			{Name: "amount", Type: metadata.TypeFloat},
			{Name: "description", Type: metadata.TypeText},
			{Name: "deleted", Type: metadata.TypeBool},
			{Name: "createdAt", Type: metadata.TypeDateTime},
			{Name: "closeDate", Type: metadata.TypeDate},
			{Name: "assignedUserId", Type: metadata.TypeVarchar},
			{Name: "accountId", Type: metadata.TypeVarchar},
			{Name: "accountName", Type: metadata.TypeForeign, Relation: "account", Foreign: metadata.StringList{"name"}},
			{Name: "addressCity", Type: metadata.TypeVarchar},
			{Name: "addressStreet", Type: metadata.TypeVarchar},
			{Name: "address", Type: metadata.TypeVarchar, NotStorable: true,
				OrderColumns: []string{"addressCity", "addressStreet"}},
			{Name: "teamRole", Type: metadata.TypeVarchar, NotStorable: true,
				Link: "teams", Column: "role"},
			{Name: "emailAddress", Type: metadata.TypeVarchar, Where: map[string]*metadata.WhereOverride{
				"=": {SQL: "lead.email_address_lower = LOWER({value})"},
			}},
		},
		[]metadata.RelationDef{
			{Name: "account", Type: metadata.RelationBelongsTo, Entity: "Account"},
			{Name: "assignedUser", Type: metadata.RelationBelongsTo, Entity: "User"},
			{Name: "teams", Type: metadata.RelationManyMany, Entity: "Team", RelationName: "TeamLead"},
			{Name: "emails", Type: metadata.RelationHasMany, Entity: "Email"},
			{Name: "parent", Type: metadata.RelationBelongsToParent},
		},
		metadata.IndexDef{Name: "createdAt", Key: "IDX_CREATED_AT"},
	)
	require.NoError(t, err)
	reg.Register(lead)

	account, err := metadata.NewEntityDef("Account",
		[]metadata.AttributeDef{
			{Name: "id", Type: metadata.TypeVarchar},
			{Name: "name", Type: metadata.TypeVarchar},
			{Name: "industry", Type: metadata.TypeVarchar},
			{Name: "deleted", Type: metadata.TypeBool},
		},
		[]metadata.RelationDef{
			{Name: "leads", Type: metadata.RelationHasMany, Entity: "Lead"},
		})
	require.NoError(t, err)
	reg.Register(account)

	team, err := metadata.NewEntityDef("Team",
		[]metadata.AttributeDef{
			{Name: "id", Type: metadata.TypeVarchar},
			{Name: "name", Type: metadata.TypeVarchar},
			{Name: "deleted", Type: metadata.TypeBool},
		},
		nil)
	require.NoError(t, err)
	reg.Register(team)

	return reg
}

func testComposer(t *testing.T, opts ...Option) *Composer {
	t.Helper()
	opts = append([]Option{WithClock(testClock)}, opts...)
	return New(testRegistry(t), opts...)
}

func mustCompose(t *testing.T, c *Composer, kind Kind, params *Params) string {
	t.Helper()
	sql, err := c.Compose(kind, params)
	require.NoError(t, err)
	return sql
}
