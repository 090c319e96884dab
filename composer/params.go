package composer

// Kind is the statement kind being composed.
type Kind string

const (
	KindSelect Kind = "SELECT"
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

// BoolOp is a where-tree connective.
type BoolOp string

const (
	OpAnd BoolOp = "AND"
	OpOr  BoolOp = "OR"
	OpNot BoolOp = "NOT"
)

// Condition is one node of a where/having tree: either a leaf comparison or
// a connective over child nodes.
//
// A leaf names its left side in Key, which is an attribute name, an
// expression ("MONTH:createdAt", "account.name"), and may carry a trailing
// comparison suffix ("amount>=", "name*"). A trailing ":" before the suffix
// marks the value as another expression rather than a literal. Type may name
// an operator explicitly ("in", "isLinked", "lastSevenDays") instead of a
// Key suffix; Type takes precedence when both are present.
type Condition struct {
	Key   string
	Type  string
	Value any

	Op    BoolOp
	Items []Condition
}

// And builds an AND connective.
func And(items ...Condition) Condition {
	return Condition{Op: OpAnd, Items: items}
}

// Or builds an OR connective.
func Or(items ...Condition) Condition {
	return Condition{Op: OpOr, Items: items}
}

// Not builds a NOT connective over the given items (AND-combined).
func Not(items ...Condition) Condition {
	return Condition{Op: OpNot, Items: items}
}

// Cmp builds a leaf condition from a key (with optional operator suffix)
// and a value.
func Cmp(key string, value any) Condition {
	return Condition{Key: key, Value: value}
}

// CmpType builds a leaf condition with an explicit operator type.
func CmpType(operator, key string, value any) Condition {
	return Condition{Type: operator, Key: key, Value: value}
}

// SelectItem is one select-list entry: a computed expression with an alias.
// Plain attribute selections use Params.Select with Expr set to the
// attribute name and no alias.
type SelectItem struct {
	Expr  string
	Alias string
}

// OrderItem is one order-by entry. Values forces an explicit ordered value
// list rendered through FIELD(...).
type OrderItem struct {
	Expr   string
	Desc   bool
	Values []string
}

// Join requests an explicit join. Target is a relation name, or a raw table
// name when the entity defines no relation of that name. Alias defaults to
// the target. Conditions are extra equality filters on the joined alias;
// for raw table joins they form the whole ON clause. OnlyMiddle restricts a
// manyMany join to the junction table.
type Join struct {
	Target     string
	Alias      string
	Conditions map[string]any
	OnlyMiddle bool
}

// Params is the generic parameter bag for one composed query. A Params
// value is read-only during composition; side effects (extra joins, forced
// DISTINCT) accumulate in the internal build context instead.
type Params struct {
	// From is the target entity type.
	From string

	Select  []SelectItem
	Where   []Condition
	Having  []Condition
	Order   []OrderItem
	GroupBy []string

	Joins          []Join
	LeftJoins      []Join
	JoinConditions map[string]map[string]any

	Distinct    bool
	WithDeleted bool

	Offset *int
	Limit  *int

	// Aggregation replaces the select list with a single aggregate over
	// AggregationBy.
	Aggregation   string
	AggregationBy string

	// TimeZone names the IANA zone used by date-relative operators.
	TimeZone string

	// UseIndex requests index hints by declared index name.
	UseIndex []string

	// Set holds UPDATE column assignments, keyed by attribute name.
	Set map[string]any

	// INSERT: Columns with either literal Values rows or a ValuesSelect
	// sub-query; OnDuplicateSet adds an upsert-style update clause.
	Columns        []string
	Values         []map[string]any
	ValuesSelect   *Params
	OnDuplicateSet map[string]any

	// Raw SQL escape hatches, appended verbatim. Legacy surface: prefer
	// structured joins and conditions.
	CustomJoin  string
	CustomWhere string
}

// Int returns a pointer to v, for Limit/Offset fields.
func Int(v int) *int {
	return &v
}
