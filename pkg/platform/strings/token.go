package strings

import "strings"

// SafeToken lowercases s and maps anything outside [a-z0-9._-] to '-', so the
// result is safe as a filename fragment, a metric label or a cache key part.
// Runs of replaced characters collapse to a single '-'.
func SafeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
