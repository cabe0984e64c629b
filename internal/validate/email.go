package validate

import (
	"errors"
	"regexp"
	"strings"
)

// Simplified RFC 5322 pattern; the document layer only needs a sane
// mailbox shape, not full grammar support.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail validates and lowercases an email address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errors.New("Email не може бути порожнім.")
	}
	if !emailRe.MatchString(email) {
		return "", errors.New("Невірний формат email.")
	}
	return email, nil
}
