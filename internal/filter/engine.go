// Package filter implements the task keyword matching engine.
package filter

import "strings"

// Match reports whether the content passes the task's keyword rules.
// An empty keyword list matches everything. Keywords use OR logic with
// case-insensitive substring matching; exclude keywords use AND-NOT logic
// (any hit rejects the record).
func Match(content string, keywords, exclude []string) bool {
	lower := strings.ToLower(content)

	for _, kw := range exclude {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}

	if len(keywords) == 0 {
		return true
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
