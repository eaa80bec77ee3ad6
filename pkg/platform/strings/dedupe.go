// Package strings holds small list-normalization helpers for operator input.
package strings

import "strings"

// DedupeAndTrimLower normalizes a list of operator-supplied names: each entry
// is trimmed and lowercased, empties are dropped, and only the first
// occurrence of a value survives. Order is preserved.
//
// Used for comma-separated env lists (rate limit actions, proxy prefixes)
// where "Login, login ," and "login" must mean the same thing.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		normalized := strings.ToLower(strings.TrimSpace(v))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	return result
}
