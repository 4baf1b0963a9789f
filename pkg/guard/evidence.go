package guard

import "strings"

// Preview returns a log-safe, truncated rendering of content for violation
// evidence. Newlines are escaped so evidence stays single-line.
func Preview(s string, max int) string {
	t := strings.NewReplacer("\r", "\\r", "\n", "\\n").Replace(s)
	if len(t) > max {
		return t[:max] + "…"
	}
	return t
}
