// Package textutil holds small string helpers shared by repositories.
package textutil

import "strings"

// NormalizeStringMap returns a copy of values with keys and values
// trimmed. Entries whose trimmed key is empty are dropped; a map with no
// surviving entries comes back as nil so callers can treat it as absent.
func NormalizeStringMap(values map[string]string) map[string]string {
	var result map[string]string
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if result == nil {
			result = make(map[string]string, len(values))
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}
