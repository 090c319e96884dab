// Package metadata provides entity definitions for the query composer.
//
// Entity definitions describe attributes (typed columns, virtual fields,
// foreign projections) and relations (belongs-to, has-many, many-to-many,
// polymorphic parent/children links). Definitions are loaded from YAML files
// and cached in a Registry, which implements the Provider interface consumed
// by the composer and the access-control layer.
//
// Definitions are immutable after construction. The Registry is safe for
// concurrent readers.
package metadata

import (
	"encoding/json"
	"fmt"
)

// AttrType is the closed set of attribute types.
type AttrType string

const (
	TypeVarchar    AttrType = "varchar"
	TypeText       AttrType = "text"
	TypeInt        AttrType = "int"
	TypeFloat      AttrType = "float"
	TypeBool       AttrType = "bool"
	TypeDate       AttrType = "date"
	TypeDateTime   AttrType = "datetime"
	TypeEnum       AttrType = "enum"
	TypeForeign    AttrType = "foreign"
	TypeJSONArray  AttrType = "jsonArray"
	TypeJSONObject AttrType = "jsonObject"
)

// RelationKind is the closed set of relation types.
type RelationKind string

const (
	RelationBelongsTo       RelationKind = "belongsTo"
	RelationBelongsToParent RelationKind = "belongsToParent"
	RelationHasMany         RelationKind = "hasMany"
	RelationHasOne          RelationKind = "hasOne"
	RelationHasChildren     RelationKind = "hasChildren"
	RelationManyMany        RelationKind = "manyMany"
)

// StringList accepts either a single string or a list of strings in JSON/YAML.
// Foreign attribute projections use it: a list means the foreign columns are
// concatenated with null-coalescing.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = StringList(list)
	return nil
}

// JoinSpec names an extra join declared by a where override.
type JoinSpec struct {
	Relation string `json:"relation"`
	Alias    string `json:"alias,omitempty"`
}

// WhereOverride replaces the generated predicate for one operator on one
// attribute. In YAML it is either a bare SQL string or a struct carrying the
// SQL plus extra joins and a distinct requirement. The SQL may contain a
// {value} placeholder substituted with the rendered comparison value.
type WhereOverride struct {
	SQL       string     `json:"sql"`
	Joins     []JoinSpec `json:"joins,omitempty"`
	LeftJoins []JoinSpec `json:"leftJoins,omitempty"`
	Distinct  bool       `json:"distinct,omitempty"`
}

// UnmarshalJSON accepts a bare string as shorthand for {sql: ...}.
func (w *WhereOverride) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*w = WhereOverride{SQL: s}
		return nil
	}
	type plain WhereOverride
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*w = WhereOverride(p)
	return nil
}

// AttributeDef describes one attribute of an entity.
type AttributeDef struct {
	Name string   `json:"name"`
	Type AttrType `json:"type"`

	// NotStorable attributes have no backing column and are excluded from
	// wildcard selection and writes.
	NotStorable   bool   `json:"notStorable,omitempty"`
	Autoincrement bool   `json:"autoincrement,omitempty"`
	Source        string `json:"source,omitempty"`

	// Select overrides the generated select expression with raw SQL.
	Select string `json:"select,omitempty"`
	// Where maps a comparison operator ("=", "<>", "in", "like", ...) to a
	// predicate override.
	Where map[string]*WhereOverride `json:"where,omitempty"`

	// Foreign projection: Relation names the link to follow, Foreign the
	// attribute(s) on the far side. A multi-element Foreign renders as a
	// trimmed, null-coalesced concatenation.
	Relation string     `json:"relation,omitempty"`
	Foreign  StringList `json:"foreign,omitempty"`

	// Link/Column tie the attribute to a column stored on a relation's
	// junction table (used by the column* where operators).
	Link   string `json:"link,omitempty"`
	Column string `json:"column,omitempty"`

	// Options drive enum-based ordering (ORDER BY FIELD(...)).
	Options []string `json:"options,omitempty"`

	// OrderColumns expands ordering on a composite attribute (for example
	// an address) into several columns.
	OrderColumns []string `json:"orderColumns,omitempty"`
}

// RelationDef describes one relation of an entity.
type RelationDef struct {
	Name   string       `json:"name"`
	Type   RelationKind `json:"type"`
	Entity string       `json:"entity,omitempty"`

	Key        string `json:"key,omitempty"`
	ForeignKey string `json:"foreignKey,omitempty"`
	NearKey    string `json:"nearKey,omitempty"`
	DistantKey string `json:"distantKey,omitempty"`

	// ForeignType names the polymorphic type column for belongsToParent
	// and hasChildren relations.
	ForeignType string `json:"foreignType,omitempty"`

	// RelationName is the junction table for manyMany relations.
	RelationName string `json:"relationName,omitempty"`
	// Conditions are static equality filters always applied to the
	// junction join.
	Conditions map[string]string `json:"conditions,omitempty"`

	// NoJoin suppresses the implicit belongs-to join for this relation.
	NoJoin bool `json:"noJoin,omitempty"`
}

// IndexDef names a database index usable as a USE INDEX hint.
type IndexDef struct {
	Name    string   `json:"name"`
	Key     string   `json:"key"`
	Columns []string `json:"columns,omitempty"`
}

// EntityDef is the immutable definition of one entity type.
type EntityDef struct {
	name       string
	attributes []*AttributeDef
	attrIndex  map[string]*AttributeDef
	relations  []*RelationDef
	relIndex   map[string]*RelationDef
	indexes    map[string]*IndexDef
}

// NewEntityDef builds an EntityDef from ordered attribute and relation lists.
// Order matters: join alias assignment follows relation declaration order.
func NewEntityDef(name string, attrs []AttributeDef, rels []RelationDef, indexes ...IndexDef) (*EntityDef, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty entity name", ErrBadEntityDefinition)
	}
	def := &EntityDef{
		name:      name,
		attrIndex: make(map[string]*AttributeDef, len(attrs)),
		relIndex:  make(map[string]*RelationDef, len(rels)),
		indexes:   make(map[string]*IndexDef, len(indexes)),
	}
	for i := range attrs {
		a := attrs[i]
		if a.Name == "" {
			return nil, fmt.Errorf("%w: %s: attribute with empty name", ErrBadEntityDefinition, name)
		}
		if a.Type == "" {
			return nil, fmt.Errorf("%w: %s.%s: missing type", ErrBadEntityDefinition, name, a.Name)
		}
		if _, dup := def.attrIndex[a.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate attribute %q", ErrBadEntityDefinition, name, a.Name)
		}
		def.attributes = append(def.attributes, &a)
		def.attrIndex[a.Name] = &a
	}
	for i := range rels {
		r := rels[i]
		if err := validateRelation(name, &r); err != nil {
			return nil, err
		}
		if _, dup := def.relIndex[r.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate relation %q", ErrBadEntityDefinition, name, r.Name)
		}
		def.relations = append(def.relations, &r)
		def.relIndex[r.Name] = &r
	}
	for i := range indexes {
		ix := indexes[i]
		def.indexes[ix.Name] = &ix
	}
	return def, nil
}

func validateRelation(entity string, r *RelationDef) error {
	if r.Name == "" {
		return fmt.Errorf("%w: %s: relation with empty name", ErrBadRelationDefinition, entity)
	}
	switch r.Type {
	case RelationBelongsTo, RelationHasMany, RelationHasOne:
		if r.Entity == "" {
			return fmt.Errorf("%w: %s.%s: missing entity", ErrBadRelationDefinition, entity, r.Name)
		}
	case RelationManyMany:
		if r.Entity == "" {
			return fmt.Errorf("%w: %s.%s: missing entity", ErrBadRelationDefinition, entity, r.Name)
		}
		if r.RelationName == "" {
			return fmt.Errorf("%w: %s.%s: manyMany relation requires relationName", ErrBadRelationDefinition, entity, r.Name)
		}
	case RelationBelongsToParent, RelationHasChildren:
		// Polymorphic: target entity resolved per row via the type column.
	case "":
		return fmt.Errorf("%w: %s.%s: missing type", ErrBadRelationDefinition, entity, r.Name)
	default:
		return fmt.Errorf("%w: %s.%s: unknown relation type %q", ErrBadRelationDefinition, entity, r.Name, r.Type)
	}
	return nil
}

// Name returns the entity type name.
func (d *EntityDef) Name() string { return d.name }

// Attribute returns the named attribute definition.
func (d *EntityDef) Attribute(name string) (*AttributeDef, bool) {
	a, ok := d.attrIndex[name]
	return a, ok
}

// HasAttribute reports whether the entity defines the named attribute.
func (d *EntityDef) HasAttribute(name string) bool {
	_, ok := d.attrIndex[name]
	return ok
}

// Attributes returns attribute definitions in declaration order.
func (d *EntityDef) Attributes() []*AttributeDef { return d.attributes }

// Relation returns the named relation definition.
func (d *EntityDef) Relation(name string) (*RelationDef, bool) {
	r, ok := d.relIndex[name]
	return r, ok
}

// Relations returns relation definitions in declaration order.
func (d *EntityDef) Relations() []*RelationDef { return d.relations }

// Index returns the named index definition.
func (d *EntityDef) Index(name string) (*IndexDef, bool) {
	ix, ok := d.indexes[name]
	return ix, ok
}

// Key returns the relation's near-side key, falling back to the
// conventional default for its kind.
func (r *RelationDef) KeyOrDefault(owner string) string {
	if r.Key != "" {
		return r.Key
	}
	switch r.Type {
	case RelationBelongsTo:
		return r.Name + "Id"
	case RelationBelongsToParent:
		return r.Name + "Id"
	default:
		return "id"
	}
}

// ForeignKeyOrDefault returns the relation's far-side key, falling back to
// the conventional default for its kind.
func (r *RelationDef) ForeignKeyOrDefault(owner string) string {
	if r.ForeignKey != "" {
		return r.ForeignKey
	}
	switch r.Type {
	case RelationBelongsTo, RelationBelongsToParent:
		return "id"
	case RelationHasChildren:
		return "parentId"
	default:
		return lowerFirst(owner) + "Id"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
