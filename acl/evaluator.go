package acl

import (
	"context"
	"log"
	"sync"
)

// User is the acting user an Evaluator decides for.
type User struct {
	ID      string
	IsAdmin bool
	TeamIDs []string
}

// Record exposes the ownership attributes of one entity record.
type Record interface {
	AssignedUserID() string
	CreatedByID() string
	TeamIDs() []string
}

// Evaluator answers permission checks for one user. The user's merged
// table is loaded on first use: from the store when cached, otherwise
// computed from role data and written back. An Evaluator is safe for
// concurrent use.
type Evaluator struct {
	user  User
	roles RoleProvider
	store Store

	once    sync.Once
	table   *Table
	loadErr error
}

// NewEvaluator builds an evaluator for a user. store may be nil, in which
// case every evaluator recomputes from role data.
func NewEvaluator(user User, roles RoleProvider, store Store) *Evaluator {
	return &Evaluator{user: user, roles: roles, store: store}
}

// Load resolves the user's merged permission table. Idempotent; the first
// call decides the outcome for the evaluator's lifetime.
func (e *Evaluator) Load(ctx context.Context) error {
	e.once.Do(func() {
		e.table, e.loadErr = e.buildTable(ctx)
	})
	return e.loadErr
}

func (e *Evaluator) buildTable(ctx context.Context) (*Table, error) {
	if e.store != nil {
		if t, ok := e.store.Get(e.user.ID); ok {
			return t, nil
		}
	}

	userRoles, err := e.roles.UserRoles(ctx, e.user.ID)
	if err != nil {
		return nil, err
	}
	teamRoles, err := e.roles.TeamRoles(ctx, e.user.TeamIDs)
	if err != nil {
		return nil, err
	}

	merged := NewTable()
	for _, role := range append(userRoles, teamRoles...) {
		t, err := role.Table()
		if err != nil {
			return nil, err
		}
		merged.Merge(t)
	}
	merged.Solidify()

	if e.store != nil {
		if err := e.store.Put(e.user.ID, merged); err != nil {
			log.Printf("[quorm] WARNING: caching acl table for user %s: %v", e.user.ID, err)
		}
	}
	return merged, nil
}

// loadedTable lazily loads on first check. A load failure fails closed
// for non-admin users.
func (e *Evaluator) loadedTable() (*Table, bool) {
	if err := e.Load(context.Background()); err != nil {
		log.Printf("[quorm] WARNING: acl load failed for user %s: %v", e.user.ID, err)
		return nil, false
	}
	return e.table, true
}

// Check resolves a scope, action, ownership, team-membership tuple to an
// allow/deny decision. Admin users pass every check. A scope the merged
// table does not mention is fully permitted.
func (e *Evaluator) Check(scope string, action Action, isOwner, inTeam bool) bool {
	if e.user.IsAdmin {
		return true
	}
	t, ok := e.loadedTable()
	if !ok {
		return false
	}

	data := t.Scope(scope)
	if data == nil {
		return true
	}
	if data.IsBool {
		return data.Bool
	}
	if action == "" {
		return true
	}

	switch data.Level(action) {
	case LevelAll:
		return true
	case LevelTeam:
		return isOwner || inTeam
	case LevelOwn, LevelAccount, LevelContact:
		return isOwner
	default:
		return false
	}
}

// CheckScope checks scope access without an action.
func (e *Evaluator) CheckScope(scope string) bool {
	return e.Check(scope, "", false, false)
}

// CheckRecord checks an action against a concrete record, deriving
// ownership and team membership from it.
func (e *Evaluator) CheckRecord(scope string, action Action, rec Record) bool {
	return e.Check(scope, action, e.CheckIsOwner(rec), e.CheckInTeam(rec))
}

// CheckIsOwner reports whether the acting user owns the record: the
// record's assigned user or creator. Admin users are never owners, so an
// admin's access always flows through explicit all/team grants.
func (e *Evaluator) CheckIsOwner(rec Record) bool {
	if e.user.IsAdmin {
		return false
	}
	if id := rec.AssignedUserID(); id != "" && id == e.user.ID {
		return true
	}
	if id := rec.CreatedByID(); id != "" && id == e.user.ID {
		return true
	}
	return false
}

// CheckInTeam reports whether the user shares a team with the record.
func (e *Evaluator) CheckInTeam(rec Record) bool {
	recTeams := rec.TeamIDs()
	if len(recTeams) == 0 || len(e.user.TeamIDs) == 0 {
		return false
	}
	member := make(map[string]struct{}, len(e.user.TeamIDs))
	for _, id := range e.user.TeamIDs {
		member[id] = struct{}{}
	}
	for _, id := range recTeams {
		if _, ok := member[id]; ok {
			return true
		}
	}
	return false
}

// Level returns the effective level for a scope and action. Admin users
// and unmentioned scopes resolve to all.
func (e *Evaluator) Level(scope string, action Action) Level {
	if e.user.IsAdmin {
		return LevelAll
	}
	t, ok := e.loadedTable()
	if !ok {
		return LevelNo
	}
	data := t.Scope(scope)
	if data == nil {
		return LevelAll
	}
	return data.Level(action)
}

// CheckReadOnlyTeam reports whether read access to a scope is exactly
// team-scoped.
func (e *Evaluator) CheckReadOnlyTeam(scope string) bool {
	return !e.user.IsAdmin && e.Level(scope, ActionRead) == LevelTeam
}

// CheckReadOnlyOwn reports whether read access is limited to owned rows.
func (e *Evaluator) CheckReadOnlyOwn(scope string) bool {
	return !e.user.IsAdmin && e.Level(scope, ActionRead) == LevelOwn
}

// CheckReadOnlyContact reports whether read access is contact-scoped.
func (e *Evaluator) CheckReadOnlyContact(scope string) bool {
	return !e.user.IsAdmin && e.Level(scope, ActionRead) == LevelContact
}

// CheckReadOnlyAccount reports whether read access is account-scoped.
func (e *Evaluator) CheckReadOnlyAccount(scope string) bool {
	return !e.user.IsAdmin && e.Level(scope, ActionRead) == LevelAccount
}

// ForbiddenFields returns the fields of a scope the user may not use for
// an action.
func (e *Evaluator) ForbiddenFields(scope string, action Action) []string {
	if e.user.IsAdmin {
		return nil
	}
	t, ok := e.loadedTable()
	if !ok {
		return nil
	}
	return t.Fields.ForbiddenFields(scope, action)
}

// ForbiddenScopes returns the sorted scopes the user has no access to at
// all.
func (e *Evaluator) ForbiddenScopes() []string {
	if e.user.IsAdmin {
		return nil
	}
	t, ok := e.loadedTable()
	if !ok {
		return nil
	}
	var out []string
	for _, name := range t.ScopeNames() {
		if t.Scopes[name].denied() {
			out = append(out, name)
		}
	}
	return out
}

// ToTable exposes the merged table for serialization by a caller-owned
// cache layer.
func (e *Evaluator) ToTable() (*Table, error) {
	if err := e.Load(context.Background()); err != nil {
		return nil, err
	}
	return e.table, nil
}

// UserID returns the acting user's id.
func (e *Evaluator) UserID() string { return e.user.ID }

// TeamIDs returns the acting user's team ids.
func (e *Evaluator) TeamIDs() []string { return e.user.TeamIDs }

// IsAdmin reports whether the acting user is an administrator.
func (e *Evaluator) IsAdmin() bool { return e.user.IsAdmin }
