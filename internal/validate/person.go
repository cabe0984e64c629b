package validate

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizePersonName capitalizes each word of a name. Single-word names
// are accepted for flexibility (company names, pseudonyms).
func NormalizePersonName(raw string) (string, error) {
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "", errors.New("Ім'я не може бути порожнім")
	}
	for i, p := range parts {
		first, size := utf8.DecodeRuneInString(p)
		if utf8.RuneCountInString(p) > 1 {
			parts[i] = string(unicode.ToUpper(first)) + strings.ToLower(p[size:])
		} else {
			parts[i] = strings.ToUpper(p)
		}
	}
	return strings.Join(parts, " "), nil
}
