package lifecycle

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// City returns the leading comma-delimited segment of an address or
// location, trimmed, e.g. "Curitiba" for "Curitiba, PR".
func City(address string) string {
	city, _, _ := strings.Cut(address, ",")
	return strings.TrimSpace(city)
}

// NormalizeCity casefolds City(address), strips diacritics and collapses
// inner whitespace, so "São  Paulo, SP" and "sao paulo" normalize alike.
func NormalizeCity(address string) string {
	return normalize(City(address))
}

// SameCity reports whether two addresses share a non-empty city.
func SameCity(a, b string) bool {
	ca := NormalizeCity(a)
	return ca != "" && ca == NormalizeCity(b)
}

// normalize folds case and removes combining marks. Transformers are
// stateful, so a fresh chain is built per call.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}
