package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Role is one stored role: scope permission data plus field-level
// restrictions, both as persisted JSON.
type Role struct {
	ID   string
	Name string

	// Data maps scope names to bool-or-action entries.
	Data json.RawMessage

	// FieldData maps scope names to per-field read/edit flags.
	FieldData json.RawMessage
}

// RoleProvider supplies the roles relevant to a user: those attached
// directly plus those attached to any of the user's teams.
type RoleProvider interface {
	UserRoles(ctx context.Context, userID string) ([]Role, error)
	TeamRoles(ctx context.Context, teamIDs []string) ([]Role, error)
}

// Table parses the role's permission data. Malformed data is an
// ErrBadRoleData, not an empty table: an unparseable role must never load
// as an implicit full grant.
func (r *Role) Table() (*Table, error) {
	t := NewTable()
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &t.Scopes); err != nil {
			return nil, fmt.Errorf("%w: role %s: %v", ErrBadRoleData, r.ID, err)
		}
	}
	if len(r.FieldData) > 0 {
		if err := json.Unmarshal(r.FieldData, &t.Fields); err != nil {
			return nil, fmt.Errorf("%w: role %s field data: %v", ErrBadRoleData, r.ID, err)
		}
	}
	return t, nil
}

// FieldPerm is one field's read/edit grant within a scope.
type FieldPerm struct {
	Read bool `json:"read"`
	Edit bool `json:"edit"`
}

// FieldTable maps scope name to field name to grant. A field absent from
// the table is fully permitted.
type FieldTable map[string]map[string]FieldPerm

// merge keeps the most restrictive flag per field: one role denying a
// field denies it for the merged result.
func (t FieldTable) merge(other FieldTable) {
	for scope, fields := range other {
		existing, ok := t[scope]
		if !ok {
			existing = make(map[string]FieldPerm, len(fields))
			t[scope] = existing
		}
		for field, perm := range fields {
			if prev, seen := existing[field]; seen {
				perm.Read = perm.Read && prev.Read
				perm.Edit = perm.Edit && prev.Edit
			}
			existing[field] = perm
		}
	}
}

// ForbiddenFields returns the sorted fields of a scope denied for an
// action. Only read and edit are field-gated; any other action reports
// nothing.
func (t FieldTable) ForbiddenFields(scope string, action Action) []string {
	fields, ok := t[scope]
	if !ok {
		return nil
	}
	var out []string
	for field, perm := range fields {
		switch action {
		case ActionRead:
			if !perm.Read {
				out = append(out, field)
			}
		case ActionEdit:
			if !perm.Edit {
				out = append(out, field)
			}
		}
	}
	sort.Strings(out)
	return out
}
