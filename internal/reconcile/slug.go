// ABOUTME: Deterministic slug derivation from course names
// ABOUTME: Lowercase ASCII-safe transform used for Circle space slugs

package reconcile

import "strings"

// Slugify derives a URL-safe slug from a course name. The transform is
// deterministic and idempotent: the same name always yields the same slug,
// and slugifying a slug returns it unchanged.
//
// Non-alphanumeric runs collapse to a single hyphen, letters are lowercased,
// and leading/trailing hyphens are trimmed. "Intro 101" becomes "intro-101".
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
