// Package strings holds small helpers for parsing list-valued inputs such as
// status filters and broker lists.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value, drops empties and duplicates, and keeps the
// first-seen order.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with case folding.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(s string) string { return strings.ToLower(strings.TrimSpace(s)) })
}

// SplitList splits a comma separated value and applies DedupeAndTrimLower.
func SplitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return DedupeAndTrimLower(strings.Split(raw, ","))
}

func dedupe(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			result = append(result, v)
		}
	}
	return result
}
