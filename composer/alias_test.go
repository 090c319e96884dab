package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorm/quorm/metadata"
)

func TestAliasCache_Stable(t *testing.T) {
	reg := testRegistry(t)
	lead, err := reg.EntityDef("Lead")
	require.NoError(t, err)

	cache := NewAliasCache()
	first := cache.Aliases(lead)
	second := cache.Aliases(lead)
	assert.Equal(t, first, second)

	assert.Equal(t, "account", cache.Alias(lead, "account"))
	assert.Equal(t, "teams", cache.Alias(lead, "teams"))
}

func TestAliasCache_BaseTableCollision(t *testing.T) {
	reg := metadata.NewRegistry(0)
	entity, err := metadata.NewEntityDef("Team",
		[]metadata.AttributeDef{{Name: "id", Type: metadata.TypeVarchar}},
		[]metadata.RelationDef{
			// Relation name collides with the entity's own table.
			{Name: "team", Type: metadata.RelationBelongsTo, Entity: "Team"},
			{Name: "parent", Type: metadata.RelationBelongsTo, Entity: "Team"},
		})
	require.NoError(t, err)
	reg.Register(entity)

	cache := NewAliasCache()
	assert.Equal(t, "team_1", cache.Alias(entity, "team"))
	assert.Equal(t, "parent", cache.Alias(entity, "parent"))
}

func TestAliasCache_CaseInsensitiveCollision(t *testing.T) {
	entity, err := metadata.NewEntityDef("Item",
		[]metadata.AttributeDef{{Name: "id", Type: metadata.TypeVarchar}},
		[]metadata.RelationDef{
			{Name: "owner", Type: metadata.RelationBelongsTo, Entity: "User"},
			{Name: "Owner", Type: metadata.RelationBelongsTo, Entity: "User"},
		})
	require.NoError(t, err)

	cache := NewAliasCache()
	assert.Equal(t, "owner", cache.Alias(entity, "owner"))
	assert.Equal(t, "Owner_1", cache.Alias(entity, "Owner"))
}

func TestAliasCache_UnknownRelationFallsBack(t *testing.T) {
	reg := testRegistry(t)
	lead, err := reg.EntityDef("Lead")
	require.NoError(t, err)

	cache := NewAliasCache()
	assert.Equal(t, "somethingElse", cache.Alias(lead, "somethingElse"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "createdAt", Sanitize("createdAt"))
	assert.Equal(t, "nameDROPTABLE", Sanitize("name; DROP TABLE--"))
	assert.Equal(t, "abc", SanitizeAlias("123abc"))
}

func TestToColumnName(t *testing.T) {
	assert.Equal(t, "assigned_user_id", ToColumnName("assignedUserId"))
	assert.Equal(t, "name", ToColumnName("name"))
	assert.Equal(t, "opportunity_contact", ToTableName("OpportunityContact"))
}

func TestQuoteValue(t *testing.T) {
	assert.Equal(t, "NULL", QuoteValue(nil))
	assert.Equal(t, "TRUE", QuoteValue(true))
	assert.Equal(t, "FALSE", QuoteValue(false))
	assert.Equal(t, "42", QuoteValue(42))
	assert.Equal(t, "1.5", QuoteValue(1.5))
	assert.Equal(t, "'it''s'", QuoteValue("it's"))
	assert.Equal(t, `'a\\b'`, QuoteValue(`a\b`))
}

func TestQuoteValueList(t *testing.T) {
	assert.Equal(t, "('a', 'b')", QuoteValueList([]any{"a", "b"}))
	assert.Equal(t, "(NULL)", QuoteValueList(nil))
}
