package categorizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// EntityKey is the case-folded identity of an entity name.
type EntityKey string

// NormalizeText performs Unicode normalization, trims whitespace and collapses
// internal runs of whitespace to a single space.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, normed)
	return strings.Join(strings.Fields(normed), " ")
}

// NormalizeAll normalizes a slice of strings.
func NormalizeAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = NormalizeText(t)
	}
	return out
}

// KeyOf returns the identity key of a name. A Caser is stateful, so one is
// built per call.
func KeyOf(name string) EntityKey {
	return EntityKey(cases.Fold().String(NormalizeText(name)))
}
