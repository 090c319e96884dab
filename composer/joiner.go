package composer

import "strings"

// joiner accumulates SQL clause fragments and joins them with a separator,
// dropping empty strings so callers never special-case optional clauses.
type joiner struct {
	sep   string
	parts []string
}

func newJoiner(sep string) *joiner {
	return &joiner{sep: sep}
}

func (j *joiner) add(parts ...string) *joiner {
	for _, p := range parts {
		if p != "" {
			j.parts = append(j.parts, p)
		}
	}
	return j
}

func (j *joiner) addIf(cond bool, part string) *joiner {
	if cond && part != "" {
		j.parts = append(j.parts, part)
	}
	return j
}

func (j *joiner) empty() bool {
	return len(j.parts) == 0
}

func (j *joiner) count() int {
	return len(j.parts)
}

func (j *joiner) String() string {
	return strings.Join(j.parts, j.sep)
}
