package store

import (
	"strings"
	"unicode"
)

// SafeName maps a query to the name its series is stored under. Letters, digits,
// spaces, underscores and hyphens are kept; every other rune becomes an underscore.
// Queries that differ only in replaced runes share a name.
func SafeName(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
