package utils

import "strings"

// Slugify derives a URL-safe identifier from a project name: lower-case,
// every run of non-alphanumeric characters collapsed to a single hyphen,
// leading and trailing hyphens stripped.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := false
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
	return strings.Trim(b.String(), "-")
}
