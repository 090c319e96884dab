package metadata

import "errors"

// Sentinel errors for metadata loading and lookup. Definition errors are
// configuration problems and fail fast at load time; a silently dropped
// relation would surface much later as a wrong query.
var (
	// ErrUnknownEntity is returned when no definition exists for an
	// entity type.
	ErrUnknownEntity = errors.New("metadata: unknown entity type")

	// ErrBadEntityDefinition is returned when an entity definition is
	// structurally invalid (empty names, duplicate attributes).
	ErrBadEntityDefinition = errors.New("metadata: bad entity definition")

	// ErrBadRelationDefinition is returned when a relation definition is
	// missing its type or target entity.
	ErrBadRelationDefinition = errors.New("metadata: bad relation definition")
)

// IsUnknownEntityErr returns true if err is or wraps ErrUnknownEntity.
func IsUnknownEntityErr(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}

// IsBadEntityDefinitionErr returns true if err is or wraps ErrBadEntityDefinition.
func IsBadEntityDefinitionErr(err error) bool {
	return errors.Is(err, ErrBadEntityDefinition)
}

// IsBadRelationDefinitionErr returns true if err is or wraps ErrBadRelationDefinition.
func IsBadRelationDefinitionErr(err error) bool {
	return errors.Is(err, ErrBadRelationDefinition)
}
