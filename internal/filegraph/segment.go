package filegraph

import "strings"

// SplitPath returns the non-empty "/"-separated segments of p in order.
// Doubled or trailing separators are collapsed; an empty path has no segments.
func SplitPath(p string) []string {
	raw := strings.Split(p, "/")
	out := raw[:0]
	for _, seg := range raw {
		if seg == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}
