package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Accepted inputs: DD.MM.YYYY (also - or / separators, 2-digit years)
// and ISO YYYY-MM-DD. Output is always DD.MM.YYYY.
var (
	dateRe    = regexp.MustCompile(`^\s*(\d{1,2})[.\-/](\d{1,2})(?:[.\-/](\d{2,4}))?\s*$`)
	dateISORe = regexp.MustCompile(`^\s*(\d{4})[.\-/](\d{1,2})[.\-/](\d{1,2})\s*$`)
)

// NormalizeDate normalizes a date to DD.MM.YYYY. The year must be given
// explicitly; guessing the current year produces surprising documents.
func NormalizeDate(raw string) (string, error) {
	var day, month, year int
	if m := dateISORe.FindStringSubmatch(raw); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else {
		m := dateRe.FindStringSubmatch(raw)
		if m == nil {
			return "", errors.New("Очікую дату у форматі ДД.ММ.РРРР, наприклад 01.09.2025")
		}
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		if m[3] == "" {
			return "", errors.New("Будь ласка, вкажіть рік у форматі ДД.ММ.РРРР, наприклад 01.09.2025")
		}
		year, _ = strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", errors.New("Такої дати не існує, перевірте день та місяць")
	}
	return fmt.Sprintf("%02d.%02d.%04d", day, month, year), nil
}
