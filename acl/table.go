package acl

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Action is one operation a permission level can be granted for.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionStream Action = "stream"
)

// ScopeData is one scope's entry in a permission table: either a plain
// boolean (the whole scope allowed or denied) or per-action levels.
//
// The wire shape mirrors stored role data, where a scope maps to `true`,
// `false`, or an action object, so both forms round-trip through JSON.
type ScopeData struct {
	// IsBool marks the boolean form; Bool holds its value.
	IsBool bool
	Bool   bool

	Actions map[Action]Level
}

// BoolScope returns the boolean form.
func BoolScope(allowed bool) *ScopeData {
	return &ScopeData{IsBool: true, Bool: allowed}
}

// ActionScope returns the per-action form.
func ActionScope(actions map[Action]Level) *ScopeData {
	return &ScopeData{Actions: actions}
}

// Level returns the level granted for an action. A boolean scope grants
// all or no on every action; an action absent from the per-action form
// defaults to all, matching the default-allow posture for unknown scopes.
func (d *ScopeData) Level(action Action) Level {
	if d.IsBool {
		if d.Bool {
			return LevelAll
		}
		return LevelNo
	}
	if level, ok := d.Actions[action]; ok {
		return level
	}
	return LevelAll
}

// denied reports whether the scope grants nothing at all.
func (d *ScopeData) denied() bool {
	return d.IsBool && !d.Bool
}

// MarshalJSON writes the boolean form as a bare bool and the action form
// as an object.
func (d *ScopeData) MarshalJSON() ([]byte, error) {
	if d.IsBool {
		return json.Marshal(d.Bool)
	}
	return json.Marshal(d.Actions)
}

// UnmarshalJSON accepts `true`, `false`, or an action-to-level object.
func (d *ScopeData) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		d.IsBool = true
		d.Bool = b
		d.Actions = nil
		return nil
	}

	var raw map[Action]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: scope entry is neither bool nor object: %v", ErrBadRoleData, err)
	}
	actions := make(map[Action]Level, len(raw))
	for action, s := range raw {
		level, err := ParseLevel(s)
		if err != nil {
			return err
		}
		actions[action] = level
	}
	d.IsBool = false
	d.Bool = false
	d.Actions = actions
	return nil
}

// Table is a user's effective permission table: scope name to scope entry.
// A scope absent from the table is implicitly fully permitted.
type Table struct {
	Scopes map[string]*ScopeData `json:"scopes"`
	Fields FieldTable            `json:"fields,omitempty"`
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{Scopes: make(map[string]*ScopeData), Fields: make(FieldTable)}
}

// Scope returns a scope's entry, or nil when the table does not mention it.
func (t *Table) Scope(name string) *ScopeData {
	return t.Scopes[name]
}

// ScopeNames returns the mentioned scopes in sorted order.
func (t *Table) ScopeNames() []string {
	names := make([]string, 0, len(t.Scopes))
	for name := range t.Scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge folds another table into this one, keeping the most restrictive
// level per scope and action. A scope only one side mentions is taken as
// is: an unmentioned scope is a full grant, so mentioning it can only
// restrict.
func (t *Table) Merge(other *Table) {
	for name, data := range other.Scopes {
		existing, ok := t.Scopes[name]
		if !ok {
			t.Scopes[name] = data.clone()
			continue
		}
		t.Scopes[name] = mergeScopeData(existing, data)
	}
	t.Fields.merge(other.Fields)
}

func mergeScopeData(a, b *ScopeData) *ScopeData {
	if a.denied() || b.denied() {
		return BoolScope(false)
	}
	if a.IsBool {
		return b.clone()
	}
	if b.IsBool {
		return a.clone()
	}

	merged := make(map[Action]Level, len(a.Actions)+len(b.Actions))
	for action, level := range a.Actions {
		merged[action] = level
	}
	for action, level := range b.Actions {
		if existing, ok := merged[action]; ok {
			merged[action] = MostRestrictive(existing, level)
		} else {
			merged[action] = level
		}
	}
	return ActionScope(merged)
}

func (d *ScopeData) clone() *ScopeData {
	if d.IsBool {
		return BoolScope(d.Bool)
	}
	actions := make(map[Action]Level, len(d.Actions))
	for action, level := range d.Actions {
		actions[action] = level
	}
	return ActionScope(actions)
}

// Solidify hard-overrides system scopes after merging, regardless of what
// role data granted. User and Team records stay readable but immutable
// through the data path; Role records are fully denied. This holds even
// against role data crafted to grant them.
func (t *Table) Solidify() {
	locked := map[Action]Level{
		ActionRead:   LevelAll,
		ActionEdit:   LevelNo,
		ActionDelete: LevelNo,
	}
	t.Scopes["User"] = ActionScope(locked)
	t.Scopes["Team"] = ActionScope(cloneActions(locked))
	t.Scopes["Role"] = BoolScope(false)
}

func cloneActions(m map[Action]Level) map[Action]Level {
	out := make(map[Action]Level, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
