package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var moneyRe = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// NormalizeMoney normalizes an amount to the form "12345.67". Thin and
// no-break spaces are stripped, decimal comma becomes a dot.
func NormalizeMoney(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", " ", "", ",", ".").Replace(raw)
	if !moneyRe.MatchString(cleaned) {
		return "", errors.New("Сума має бути числом, наприклад 15000 або 15000.00")
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", errors.New("Не вдалося розпізнати суму, перевірте формат")
	}
	return fmt.Sprintf("%.2f", amount), nil
}
