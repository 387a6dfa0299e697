// Package slug builds URL-safe identifiers from translated text.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	invalid    = regexp.MustCompile(`[^a-z0-9_\s-]+`)
	separators = regexp.MustCompile(`[\s-]+`)
)

// Make lowercases s, strips accents, drops characters outside [a-z0-9_-]
// and joins words with single hyphens.
func Make(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	out = invalid.ReplaceAllString(out, "")
	out = separators.ReplaceAllString(strings.TrimSpace(out), "-")
	return strings.Trim(out, "-")
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
