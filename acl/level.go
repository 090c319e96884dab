// Package acl evaluates row-level access permissions. A user's effective
// permission table is assembled from role data, cached per user, and
// consulted both for point checks (may this user edit this record) and for
// query filtering (restrict a list query to readable rows).
package acl

import "fmt"

// Level is the permission granularity granted for one action on a scope.
// Levels are strictly ordered from most to least restrictive:
//
//	no < own < account < contact < team < all
//
// The account and contact levels exist for portal users, whose reach is
// defined by linked account/contact records rather than team membership.
type Level string

const (
	LevelNo      Level = "no"
	LevelOwn     Level = "own"
	LevelAccount Level = "account"
	LevelContact Level = "contact"
	LevelTeam    Level = "team"
	LevelAll     Level = "all"
)

var levelRank = map[Level]int{
	LevelNo:      0,
	LevelOwn:     1,
	LevelAccount: 2,
	LevelContact: 3,
	LevelTeam:    4,
	LevelAll:     5,
}

// ParseLevel validates a level string from role data. The empty string and
// "false" both mean no access; "true" means full access.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "", "false":
		return LevelNo, nil
	case "true":
		return LevelAll, nil
	}
	l := Level(s)
	if _, ok := levelRank[l]; !ok {
		return LevelNo, fmt.Errorf("%w: unknown level %q", ErrBadRoleData, s)
	}
	return l, nil
}

// MostRestrictive returns the lower of two levels.
func MostRestrictive(a, b Level) Level {
	if levelRank[a] <= levelRank[b] {
		return a
	}
	return b
}

// Includes reports whether a grant at level l satisfies a requirement of
// at least level min.
func (l Level) Includes(min Level) bool {
	return levelRank[l] >= levelRank[min]
}
