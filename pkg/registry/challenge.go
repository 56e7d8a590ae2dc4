package registry

import (
	"strings"
	"unicode"
)

// Challenges maps a lowercased auth scheme to its lowercased parameters.
type Challenges map[string]map[string]string

// ParseChallenge parses a WWW-Authenticate header value such as
//
//	Bearer realm="https://auth.docker.io/token",service="registry.docker.io",scope="repository:library/alpine:pull"
//
// Parsing is best effort: fragments which do not match are skipped, never reported.
func ParseChallenge(header string) Challenges {
	s := header + " ,"
	out := Challenges{}

	pos := 0
	for {
		pos = skipSpace(s, pos)
		start := pos
		for pos < len(s) && !isSpace(s[pos]) {
			pos++
		}
		if pos == start || pos == len(s) {
			return out
		}
		scheme := strings.ToLower(s[start:pos])
		pos = skipSpace(s, pos)

		params := map[string]string{}
		for {
			key, value, next, ok := parseParam(s, pos)
			if !ok {
				break
			}
			params[key] = value
			pos = next
		}
		out[scheme] = params
	}
}

// parseParam reads one `key=value,` or `key="value",` starting at pos.
func parseParam(s string, pos int) (key, value string, next int, ok bool) {
	pos = skipSpace(s, pos)
	start := pos
	for pos < len(s) && s[pos] != '=' && !isSpace(s[pos]) {
		pos++
	}
	if pos == start {
		return "", "", 0, false
	}
	key = strings.ToLower(s[start:pos])

	pos = skipSpace(s, pos)
	if pos >= len(s) || s[pos] != '=' {
		return "", "", 0, false
	}
	pos = skipSpace(s, pos+1)

	if pos < len(s) && s[pos] == '"' {
		// A quote after a backslash still closes the value when a comma follows it,
		// so "C:\" stays a backslash-terminated value.
		pos++
		start = pos
		closed := false
		for ; pos < len(s); pos++ {
			if s[pos] != '"' {
				continue
			}
			if pos == start || s[pos-1] != '\\' || endsParam(s, pos+1) {
				closed = true
				break
			}
		}
		if !closed {
			return "", "", 0, false
		}
		value = strings.ReplaceAll(s[start:pos], `\"`, `"`)
		pos = skipSpace(s, pos+1)
	} else {
		start = pos
		for pos < len(s) && s[pos] != ',' && s[pos] != '"' {
			pos++
		}
		value = strings.TrimSpace(s[start:pos])
	}

	if pos >= len(s) || s[pos] != ',' {
		return "", "", 0, false
	}
	return key, value, pos + 1, true
}

func endsParam(s string, pos int) bool {
	pos = skipSpace(s, pos)
	return pos < len(s) && s[pos] == ','
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && isSpace(s[pos]) {
		pos++
	}
	return pos
}

func isSpace(c byte) bool {
	return c < 0x80 && unicode.IsSpace(rune(c))
}
