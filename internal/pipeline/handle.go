package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deriveHandle turns a legacy login or email local-part into a target login
// handle: lowercased, diacritics stripped, non-alphanumerics removed.
// Collisions are resolved by the caller with a numeric suffix.
func deriveHandle(base string) string {
	s := strings.ToLower(strings.TrimSpace(base))
	if at := strings.IndexByte(s, '@'); at > 0 {
		s = s[:at]
	}
	s = stripDiacritics(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "member"
	}
	return b.String()
}

// stripDiacritics decomposes to NFD, drops combining marks, recomposes.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
