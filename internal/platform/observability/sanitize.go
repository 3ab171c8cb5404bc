package observability

import "strings"

// stripControl drops control characters so header-derived values cannot
// inject newlines into log output, then caps the length.
func stripControl(value string, limit int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	if limit > 0 && len(cleaned) > limit {
		cleaned = cleaned[:limit]
	}
	return cleaned
}

func sanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return stripControl(route, 180)
}

func sanitizeMethod(method string) string {
	return stripControl(method, 10)
}

func sanitizeUserID(uid string) string {
	return stripControl(uid, 64)
}
