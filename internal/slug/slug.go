// Package slug derives stable, idempotent identifiers from user-supplied
// strings (spec §3: app name is a slug, lowercase, [a-z0-9-], unique).
package slug

import "strings"

// Slugify lowercases s, replaces each run of characters outside [a-z0-9]
// (dashes included) with a single '-', and trims leading/trailing '-'. It is idempotent:
// Slugify(Slugify(x)) == Slugify(x).
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}

	out := strings.TrimRight(b.String(), "-")
	return out
}

// Valid reports whether s is already a well-formed slug.
func Valid(s string) bool {
	return s != "" && Slugify(s) == s
}
