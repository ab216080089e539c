// Package category maps free-text playlist group names onto a curated set of
// display categories.
package category

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningMarks is the Combining Diacritical Marks block, U+0300–U+036F.
var combiningMarks = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// Normalize folds s for comparison: lower-case, canonical decomposition with
// combining diacritical marks removed, surrounding whitespace trimmed.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningMarks)))
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		// The chain only drops runes; fall back to the lower-cased input.
		out = strings.ToLower(s)
	}
	return strings.TrimSpace(out)
}
