package vocabulary

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize maps a raw symptom label onto its matching key: NFKC form,
// control characters removed, underscores read as spaces, whitespace
// collapsed and trimmed, case folded.
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '_':
			return ' '
		case unicode.IsSpace(r):
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	// Casers carry state and must not be shared between goroutines.
	return cases.Fold().String(s)
}
