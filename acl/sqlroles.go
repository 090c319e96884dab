package acl

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quorm/quorm/composer"
)

// Querier is the database surface the SQL role provider needs. Satisfied
// by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLRoleProvider loads roles from the conventional role tables: role,
// role_user and role_team. Literals are inlined with quoting, the same
// convention the composer uses, so the queries run unchanged on MySQL
// and PostgreSQL.
type SQLRoleProvider struct {
	db Querier
}

// NewSQLRoleProvider returns a provider over a database handle.
func NewSQLRoleProvider(db Querier) *SQLRoleProvider {
	return &SQLRoleProvider{db: db}
}

// UserRoles returns the roles linked directly to a user.
func (p *SQLRoleProvider) UserRoles(ctx context.Context, userID string) ([]Role, error) {
	if userID == "" {
		return nil, nil
	}
	query := "SELECT r.id, r.name, r.data, r.field_data" +
		" FROM role r" +
		" JOIN role_user ru ON ru.role_id = r.id AND ru.deleted = 0" +
		" WHERE r.deleted = 0 AND ru.user_id = " + composer.QuoteValue(userID) +
		" ORDER BY r.id"
	return p.queryRoles(ctx, query)
}

// TeamRoles returns the roles linked to any of the given teams.
func (p *SQLRoleProvider) TeamRoles(ctx context.Context, teamIDs []string) ([]Role, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	ids := make([]any, len(teamIDs))
	for i, id := range teamIDs {
		ids[i] = id
	}
	query := "SELECT DISTINCT r.id, r.name, r.data, r.field_data" +
		" FROM role r" +
		" JOIN role_team rt ON rt.role_id = r.id AND rt.deleted = 0" +
		" WHERE r.deleted = 0 AND rt.team_id IN " + composer.QuoteValueList(ids) +
		" ORDER BY r.id"
	return p.queryRoles(ctx, query)
}

func (p *SQLRoleProvider) queryRoles(ctx context.Context, query string) ([]Role, error) {
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var (
			role      Role
			name      sql.NullString
			data      []byte
			fieldData []byte
		)
		if err := rows.Scan(&role.ID, &name, &data, &fieldData); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		role.Name = name.String
		role.Data = json.RawMessage(data)
		role.FieldData = json.RawMessage(fieldData)
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
