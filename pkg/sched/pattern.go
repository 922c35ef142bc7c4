package sched

import (
	"regexp"
	"strconv"
	"strings"
)

// matchTimePattern reports whether an hourPattern:minutePattern matches
// the given fast-clock time. Each field is an exact number, a `*`
// wildcard, or a `*/N` interval; both fields must pass. Empty, `*` and
// `*:*` match every tick. Malformed patterns never match.
func matchTimePattern(pattern string, hour, minute int) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	parts := strings.Split(pattern, ":")
	if len(parts) != 2 {
		return false
	}
	return matchTimeField(parts[0], hour) && matchTimeField(parts[1], minute)
}

func matchTimeField(field string, value int) bool {
	if field == "*" {
		return true
	}
	if interval, ok := strings.CutPrefix(field, "*/"); ok {
		n, err := strconv.Atoi(interval)
		if err != nil || n <= 0 {
			return false
		}
		return value%n == 0
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return false
	}
	return value == n
}

// compileObjectPattern turns an object-ID pattern into a matcher. A
// pattern without wildcards is exact equality; `*` inside a pattern
// matches any run of characters; empty or bare `*` matches everything
// (nil matcher).
func compileObjectPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" || pattern == "*" {
		return nil, nil
	}
	if !strings.Contains(pattern, "*") {
		return regexp.Compile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	return regexp.Compile(expr)
}
