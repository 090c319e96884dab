package acl

import "github.com/quorm/quorm/composer"

// AccessFilter mutates list-query parameters so the composed SQL only
// returns rows the acting user is permitted to see. It is the seam between
// permission evaluation and query composition: the evaluator decides the
// level, the filter translates it into predicates and joins.
type AccessFilter struct {
	eval *Evaluator
}

// NewAccessFilter wraps an evaluator.
func NewAccessFilter(eval *Evaluator) *AccessFilter {
	return &AccessFilter{eval: eval}
}

// teamsAccessAlias names the injected team join so the predicate and the
// join always agree, and so callers can recognize it in JoinConditions.
const teamsAccessAlias = "teamsAccess"

// Apply restricts params to the rows reachable at the user's level for a
// scope and action. Admin users and all-level grants leave the query
// untouched.
func (f *AccessFilter) Apply(params *composer.Params, scope string, action Action) {
	if f.eval.IsAdmin() {
		return
	}

	switch f.eval.Level(scope, action) {
	case LevelAll:
		return

	case LevelTeam:
		// Team reach: a row is visible when one of its teams is the
		// user's, or when the row is assigned to the user. The team link
		// fans rows out, so the query goes distinct.
		params.LeftJoins = append(params.LeftJoins, composer.Join{
			Target: "teams",
			Alias:  teamsAccessAlias,
		})
		params.Where = append(params.Where, composer.Or(
			composer.Cmp(teamsAccessAlias+".id", f.eval.TeamIDs()),
			composer.Cmp("assignedUserId", f.eval.UserID()),
		))
		params.Distinct = true

	case LevelOwn, LevelAccount, LevelContact:
		params.Where = append(params.Where, composer.Cmp("assignedUserId", f.eval.UserID()))

	default:
		// No access: an empty IN list renders an always-false predicate.
		params.Where = append(params.Where, composer.Cmp("id", []string{}))
	}
}
