package composer

import "errors"

// Sentinel errors for composition failures. These are structural errors:
// they indicate malformed caller parameters, corrupt saved filters, or
// inconsistent metadata, never a query that merely matches nothing. A query
// that fails composition is never sent to the database.
var (
	// ErrInvalidParams is returned for malformed caller input: a parameter
	// not allowed for the statement kind, an empty INSERT column list, a
	// missing required sub-key. Never retried.
	ErrInvalidParams = errors.New("composer: invalid parameters")

	// ErrUnsupportedFunction is returned when an expression references a
	// function outside the closed allow-list.
	ErrUnsupportedFunction = errors.New("composer: unsupported function")

	// ErrBadArity is returned when a known function receives the wrong
	// number of arguments.
	ErrBadArity = errors.New("composer: wrong function argument count")

	// ErrUnknownRelation is returned when a join references a relation the
	// entity does not define.
	ErrUnknownRelation = errors.New("composer: unknown relation")
)

// IsInvalidParamsErr returns true if err is or wraps ErrInvalidParams.
func IsInvalidParamsErr(err error) bool {
	return errors.Is(err, ErrInvalidParams)
}

// IsUnsupportedFunctionErr returns true if err is or wraps ErrUnsupportedFunction.
func IsUnsupportedFunctionErr(err error) bool {
	return errors.Is(err, ErrUnsupportedFunction)
}

// IsBadArityErr returns true if err is or wraps ErrBadArity.
func IsBadArityErr(err error) bool {
	return errors.Is(err, ErrBadArity)
}

// IsUnknownRelationErr returns true if err is or wraps ErrUnknownRelation.
func IsUnknownRelationErr(err error) bool {
	return errors.Is(err, ErrUnknownRelation)
}
