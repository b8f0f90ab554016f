package geocode

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases, trims, and strips diacritics so "São Paulo" and
// "Sao Paulo" key identically.
func normalize(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// cacheKey returns SHA-256 hex of the normalized full address. Identical
// normalized addresses always produce identical keys.
func cacheKey(q Query) string {
	addr := q.Address
	if strings.TrimSpace(addr) == "" {
		addr = q.City
	}
	normalized := fmt.Sprintf("%s|%s|%s|%s",
		normalize(addr), normalize(q.City), normalize(q.State), normalize(q.Country))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}
