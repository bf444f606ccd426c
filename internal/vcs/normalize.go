// internal/vcs/normalize.go
package vcs

import (
	"regexp"
	"strings"
)

var reInterTag = regexp.MustCompile(`>\s+<`)

// NormalizeMarkup collapses all inter-tag whitespace so two renderings of the
// same tree compare equal regardless of indentation or line breaks.
func NormalizeMarkup(raw string) string {
	return reInterTag.ReplaceAllString(strings.TrimSpace(raw), "><")
}

// SemanticallyEqual reports whether two markup strings differ only in
// inter-tag whitespace.
func SemanticallyEqual(a, b string) bool {
	return NormalizeMarkup(a) == NormalizeMarkup(b)
}
