package acl

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Statements run one at a time: the pgx driver rejects multi-statement
// execs under the extended query protocol.
var roleSchemaSQL = []string{
	`CREATE TABLE role (
		id varchar(24) PRIMARY KEY,
		name varchar(255),
		data text,
		field_data text,
		deleted smallint NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE role_user (
		role_id varchar(24) NOT NULL,
		user_id varchar(24) NOT NULL,
		deleted smallint NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE role_team (
		role_id varchar(24) NOT NULL,
		team_id varchar(24) NOT NULL,
		deleted smallint NOT NULL DEFAULT 0
	)`,
}

// startRoleDB brings up a PostgreSQL container with the role tables.
func startRoleDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("quorm"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range roleSchemaSQL {
		_, err = db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func TestSQLRoleProvider_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := startRoleDB(t)
	ctx := context.Background()

	seed := []string{
		`INSERT INTO role (id, name, data, field_data) VALUES
			('r1', 'Sales', '{"Lead": {"read": "all", "edit": "team"}}', NULL),
			('r2', 'Support', '{"Lead": {"read": "team"}, "Call": false}', NULL),
			('r3', 'Removed', '{"Lead": true}', NULL)`,
		`UPDATE role SET deleted = 1 WHERE id = 'r3'`,
		`INSERT INTO role_user (role_id, user_id) VALUES ('r1', 'u1'), ('r3', 'u1')`,
		`INSERT INTO role_team (role_id, team_id) VALUES ('r2', 't1'), ('r2', 't2')`,
	}
	for _, stmt := range seed {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	provider := NewSQLRoleProvider(db)

	userRoles, err := provider.UserRoles(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, userRoles, 1)
	assert.Equal(t, "r1", userRoles[0].ID)
	assert.Equal(t, "Sales", userRoles[0].Name)

	// The same role linked through two teams comes back once.
	teamRoles, err := provider.TeamRoles(ctx, []string{"t1", "t2"})
	require.NoError(t, err)
	require.Len(t, teamRoles, 1)
	assert.Equal(t, "r2", teamRoles[0].ID)

	none, err := provider.TeamRoles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	// End to end through the evaluator: the merged table keeps the most
	// restrictive level per action across user and team roles.
	eval := NewEvaluator(User{ID: "u1", TeamIDs: []string{"t1"}}, provider, NewMemoryStore())
	require.NoError(t, eval.Load(ctx))

	assert.Equal(t, LevelTeam, eval.Level("Lead", ActionRead))
	assert.Equal(t, LevelTeam, eval.Level("Lead", ActionEdit))
	assert.False(t, eval.CheckScope("Call"))
	assert.Equal(t, []string{"Call", "Role"}, eval.ForbiddenScopes())
}
