package matching

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// globChars are the characters that turn a name into a glob pattern.
const globChars = "*?[{"

// IsGlob reports whether pattern contains glob metacharacters.
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, globChars)
}

// MatchName checks if a metric name matches an exact name or glob pattern.
// Returns ScoreNameExact for an exact match, ScoreNameGlob for a glob match,
// and 0 otherwise. Invalid globs never match.
//
// Globs use doublestar syntax. Metric names rarely contain '/', so '*' in
// practice spans dots: "api.*" matches "api.requests.count".
func MatchName(pattern, name string) int {
	if pattern == "" {
		return 0
	}
	if pattern == name {
		return ScoreNameExact
	}
	if !IsGlob(pattern) {
		return 0
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil || !ok {
		return 0
	}
	return ScoreNameGlob
}

// MatchNamePattern checks if a metric name matches a compiled regexp.
// Returns ScoreNamePattern if matched, 0 if not.
func MatchNamePattern(re *regexp.Regexp, name string) int {
	if re == nil || !re.MatchString(name) {
		return 0
	}
	return ScoreNamePattern
}

// ValidateGlob checks if a glob pattern is valid.
func ValidateGlob(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return doublestar.ErrBadPattern
	}
	return nil
}
