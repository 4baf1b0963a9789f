// Package textcanon canonicalizes chat content so every guard observes a
// stable form: Unicode NFKC, zero-width and control characters stripped,
// whitespace collapsed.
package textcanon

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

func isZeroWidth(r rune) bool {
	return (r >= 0x200B && r <= 0x200F) || r == 0xFEFF
}

// Normalize returns the canonical form of s.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	n := norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(n))
	// Control characters (including newlines and tabs) are stripped, not
	// converted to spaces; only genuine whitespace is collapsed afterwards.
	for _, r := range n {
		if isZeroWidth(r) || unicode.In(r, unicode.Cc, unicode.Cf) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
