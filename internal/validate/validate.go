// Package validate implements the pure field validators: each takes a
// raw string and returns a normalized value or a user-facing error
// message. Validators know nothing about sessions.
package validate

import (
	"strings"
)

// Func normalizes a raw value or returns a user-facing error.
type Func func(raw string) (string, error)

var validators = map[string]Func{
	"date":        NormalizeDate,
	"email":       NormalizeEmail,
	"money":       NormalizeMoney,
	"iban":        NormalizeIBANUA,
	"rnokpp":      NormalizeRNOKPP,
	"edrpou":      NormalizeEDRPOU,
	"person_name": NormalizePersonName,
	"address":     NormalizeAddress,
}

// Value validates raw against the validator registered for fieldType.
// It returns the normalized value and an empty message on success, or
// the trimmed input and a user-facing message on failure. Unknown types
// fall back to trimming. Validation failures are values, not errors.
func Value(fieldType, raw string) (normalized, errMsg string) {
	fn, ok := validators[fieldType]
	if !ok {
		return strings.TrimSpace(raw), ""
	}
	out, err := fn(raw)
	if err != nil {
		return strings.TrimSpace(raw), err.Error()
	}
	return out, ""
}

// InferType guesses the validator type from a field name. Party fields
// carry no explicit type in the schema, so naming conventions decide.
func InferType(fieldName string) string {
	name := strings.ToLower(fieldName)
	switch {
	case strings.Contains(name, "iban"):
		return "iban"
	case strings.Contains(name, "rnokpp"), strings.Contains(name, "tax_id"), strings.Contains(name, "ipn"):
		return "rnokpp"
	case strings.Contains(name, "edrpou"):
		return "edrpou"
	case strings.Contains(name, "date"), strings.HasSuffix(name, "_at"):
		return "date"
	case strings.Contains(name, "email"), strings.Contains(name, "mail"):
		return "email"
	case strings.Contains(name, "amount"), strings.Contains(name, "price"), strings.Contains(name, "sum"):
		return "money"
	case strings.Contains(name, "name"), name == "pib":
		return "person_name"
	case strings.Contains(name, "address"), strings.Contains(name, "addr"):
		return "address"
	default:
		return "text"
	}
}
