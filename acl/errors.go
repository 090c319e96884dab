package acl

import "errors"

// ErrBadRoleData reports role data that failed JSON parsing or named an
// unknown permission level. Treated as fatal at load time: silently
// dropping a role would fail open.
var ErrBadRoleData = errors.New("bad role data")

// IsBadRoleDataErr reports whether err stems from malformed role data.
func IsBadRoleDataErr(err error) bool {
	return errors.Is(err, ErrBadRoleData)
}
