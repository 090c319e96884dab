package expr

import "strings"

// ParseArguments splits the content of a function-call argument list on
// top-level commas. Commas nested inside single or double quotes (with
// backslash escapes) or inside balanced parentheses do not split. A blank
// input yields an empty list.
//
// A whole call expression is unwrapped first, so both the bare list and
// "CONCAT(a, 'x,y', b)" yield ["a", "'x,y'", "b"].
func ParseArguments(content string) []string {
	content = unwrapCall(strings.TrimSpace(content))
	if strings.TrimSpace(content) == "" {
		return []string{}
	}

	var (
		args    []string
		buf     strings.Builder
		depth   int
		quote   byte
		escaped bool
	)

	flush := func() {
		args = append(args, strings.TrimSpace(buf.String()))
		buf.Reset()
	}

	for i := 0; i < len(content); i++ {
		c := content[i]

		if escaped {
			buf.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' {
			buf.WriteByte(c)
			escaped = true
			continue
		}

		if quote != 0 {
			if c == quote {
				quote = 0
			}
			buf.WriteByte(c)
			continue
		}

		switch c {
		case '\'', '"':
			quote = c
			buf.WriteByte(c)
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			if depth > 0 {
				depth--
			}
			buf.WriteByte(c)
		case ',':
			if depth == 0 {
				flush()
			} else {
				buf.WriteByte(c)
			}
		default:
			buf.WriteByte(c)
		}
	}
	flush()

	return args
}

// unwrapCall strips a "NAME(...)" wrapper spanning the whole input,
// returning the argument text inside the parens.
func unwrapCall(s string) string {
	open := strings.IndexByte(s, '(')
	if open <= 0 || s[len(s)-1] != ')' {
		return s
	}
	for i := 0; i < open; i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return s
		}
	}
	if !balanced(s[open:]) {
		return s
	}
	return s[open+1 : len(s)-1]
}
