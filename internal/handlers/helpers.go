package handlers

import (
	"encoding/json"
	"errors"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/shades-uz/api/internal/domain"
	"github.com/shades-uz/api/internal/platform/auth"
	"github.com/shades-uz/api/internal/platform/i18n"
)

const visitDateLayout = "2006-01-02"

var errBodyTooLarge = errors.New("request body too large")

// textPolicy strips every tag from client-entered free text. Entities are
// unescaped afterwards so "O'Brien" survives the round trip.
var textPolicy = bluemonday.StrictPolicy()

func sanitizeUserText(value string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(value)))
}

func sanitizeUserTextPointer(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := sanitizeUserText(*value)
	return &cleaned
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func decodeJSONBody(r *http.Request, limit int64, dst any) error {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("request body is required")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatVisitDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(visitDateLayout)
}

func parseVisitDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(visitDateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("must be a YYYY-MM-DD date")
	}
	return t.UTC(), nil
}

func parseTimeParam(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(visitDateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			result = append(result, part)
		}
	}
	return result
}

// requestLanguage picks the response language: explicit lang query parameter
// first, then the authenticated account's preference, then Accept-Language.
func requestLanguage(r *http.Request) domain.LanguageCode {
	if r == nil {
		return i18n.Default
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("lang")); raw != "" {
		return i18n.Resolve(raw)
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity.Locale != "" {
		return i18n.Resolve(identity.Locale)
	}
	if header := strings.TrimSpace(r.Header.Get("Accept-Language")); header != "" {
		first := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
		return i18n.Resolve(first)
	}
	return i18n.Default
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
