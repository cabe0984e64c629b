package validate

import "strings"

// NormalizeAddress collapses runs of whitespace; casing stays as typed.
func NormalizeAddress(raw string) (string, error) {
	return strings.Join(strings.Fields(raw), " "), nil
}
