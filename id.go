package quorm

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewRecordID returns a new record identifier: a lowercase ULID, so ids
// sort by creation time and stay safe inside generated SQL without
// escaping concerns.
func NewRecordID() string {
	return strings.ToLower(ulid.Make().String())
}
