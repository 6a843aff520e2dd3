package types

import "strings"

// NormalizeIdentifier strips the separators people type into identity and
// phone numbers. Every hyphen and space is removed; everything else is kept
// in order. Empty input stays empty. The function is idempotent, so it is
// safe to apply at every boundary without tracking whether a value was
// already cleaned.
func NormalizeIdentifier(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
