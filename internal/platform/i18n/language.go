// Package i18n resolves client-supplied language codes onto the catalog
// languages the system actually stores translations for.
package i18n

import (
	"strings"

	"golang.org/x/text/language"

	domain "github.com/shades-uz/api/internal/domain"
)

// Default is the language used when no supported match exists.
const Default = domain.LanguageRussian

var supported = []struct {
	code domain.LanguageCode
	tag  language.Tag
}{
	{domain.LanguageRussian, language.MustParse("ru")},
	{domain.LanguageUzbekCyrillic, language.MustParse("uz-Cyrl")},
	{domain.LanguageUzbekLatin, language.MustParse("uz-Latn")},
}

var matcher language.Matcher

func init() {
	tags := make([]language.Tag, 0, len(supported))
	for _, entry := range supported {
		tags = append(tags, entry.tag)
	}
	matcher = language.NewMatcher(tags)
}

// Codes lists the supported language codes in preference order.
func Codes() []domain.LanguageCode {
	codes := make([]domain.LanguageCode, 0, len(supported))
	for _, entry := range supported {
		codes = append(codes, entry.code)
	}
	return codes
}

// Resolve maps a client-supplied language code onto a supported catalog
// language. Unknown, malformed, or empty input resolves to the default.
func Resolve(raw string) domain.LanguageCode {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Default
	}

	for _, entry := range supported {
		if strings.EqualFold(trimmed, string(entry.code)) {
			return entry.code
		}
	}

	// Wire codes use underscores; BCP 47 wants hyphens.
	tag, err := language.Parse(strings.ReplaceAll(trimmed, "_", "-"))
	if err != nil {
		return Default
	}
	_, index, conf := matcher.Match(tag)
	if conf == language.No {
		return Default
	}
	return supported[index].code
}
