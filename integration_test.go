package quorm

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quorm/quorm/acl"
	"github.com/quorm/quorm/composer"
	"github.com/quorm/quorm/metadata"
)

const leadSchemaSQL = `
CREATE TABLE lead (
	id varchar(24) PRIMARY KEY,
	name varchar(255),
	status varchar(64),
	amount double,
	assigned_user_id varchar(24),
	deleted tinyint(1) NOT NULL DEFAULT 0
)`

func leadMeta(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry(0)
	lead, err := metadata.NewEntityDef("Lead",
		[]metadata.AttributeDef{
			{Name: "id", Type: metadata.TypeVarchar},
			{Name: "name", Type: metadata.TypeVarchar},
			{Name: "status", Type: metadata.TypeVarchar},
			{Name: "amount", Type: metadata.TypeFloat},
			{Name: "assignedUserId", Type: metadata.TypeVarchar},
			{Name: "deleted", Type: metadata.TypeBool},
		},
		nil)
	require.NoError(t, err)
	reg.Register(lead)
	return reg
}

// startLeadDB brings up a MySQL container with the lead table. MySQL is
// the backend whose statements the default composer emits, so the end to
// end path runs against it.
func startLeadDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "test",
				"MYSQL_DATABASE":      "quorm",
			},
			WaitingFor: wait.ForLog("port: 3306  MySQL Community Server - GPL").
				WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	db, err := sql.Open("mysql", fmt.Sprintf("root:test@tcp(%s:%s)/quorm", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, leadSchemaSQL)
	require.NoError(t, err)
	return db
}

type staticRoles struct {
	data string
}

func (s staticRoles) UserRoles(ctx context.Context, userID string) ([]acl.Role, error) {
	return []acl.Role{{ID: "r1", Data: json.RawMessage(s.data)}}, nil
}

func (s staticRoles) TeamRoles(ctx context.Context, teamIDs []string) ([]acl.Role, error) {
	return nil, nil
}

func TestEngine_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := startLeadDB(t)
	ctx := context.Background()
	engine := NewEngine(leadMeta(t), db)

	res, err := engine.Insert(ctx, &composer.Params{
		From:    "Lead",
		Columns: []string{"id", "name", "status", "amount", "assignedUserId"},
		Values: []map[string]any{
			{"id": "l1", "name": "Alpha", "status": "New", "amount": 100, "assignedUserId": "u1"},
			{"id": "l2", "name": "Beta", "status": "New", "amount": 200, "assignedUserId": "u2"},
			{"id": "l3", "name": "Gamma", "status": "Converted", "amount": 50, "assignedUserId": "u1"},
		},
	})
	require.NoError(t, err)
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 3, affected)

	n, err := engine.Count(ctx, &composer.Params{
		From:  "Lead",
		Where: []composer.Condition{composer.Cmp("status", "New")},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	rows, err := engine.Find(ctx, &composer.Params{
		From:   "Lead",
		Select: []composer.SelectItem{{Expr: "id"}},
		Order:  []composer.OrderItem{{Expr: "amount", Desc: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"l2", "l1", "l3"}, scanIDs(t, rows))

	res, err = engine.Update(ctx, &composer.Params{
		From:  "Lead",
		Set:   map[string]any{"status": "Assigned"},
		Where: []composer.Condition{composer.Cmp("id", "l1")},
	})
	require.NoError(t, err)
	affected, err = res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	// Own-level read access narrows the result set to the user's records.
	eval := acl.NewEvaluator(acl.User{ID: "u1"}, staticRoles{`{"Lead": {"read": "own"}}`}, acl.NewMemoryStore())
	require.NoError(t, eval.Load(ctx))

	rows, err = engine.FindAllowed(ctx, eval, acl.ActionRead, &composer.Params{
		From:   "Lead",
		Select: []composer.SelectItem{{Expr: "id"}},
		Order:  []composer.OrderItem{{Expr: "id"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"l1", "l3"}, scanIDs(t, rows))

	_, err = engine.Delete(ctx, &composer.Params{
		From:  "Lead",
		Where: []composer.Condition{composer.Cmp("id", "l3")},
	})
	require.NoError(t, err)

	n, err = engine.Count(ctx, &composer.Params{From: "Lead"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func scanIDs(t *testing.T, rows *sql.Rows) []string {
	t.Helper()
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}
