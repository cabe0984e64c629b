package validate

import (
	"errors"
	"regexp"
	"strings"
)

var ibanCharsRe = regexp.MustCompile(`^[A-Z0-9]+$`)

// mod97 checks an IBAN per ISO 13616: move the first four characters to
// the end, map letters to numbers (A=10..Z=35) and verify the remainder.
func mod97(iban string) bool {
	if len(iban) < 4 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	remainder := 0
	for _, ch := range rearranged {
		switch {
		case ch >= '0' && ch <= '9':
			remainder = (remainder*10 + int(ch-'0')) % 97
		default:
			n := int(ch-'A') + 10
			for _, d := range []int{n / 10, n % 10} {
				remainder = (remainder*10 + d) % 97
			}
		}
	}
	return remainder == 1
}

// NormalizeIBANUA validates a Ukrainian IBAN: 29 characters, UA prefix,
// MOD-97 checksum. Empty input passes through for optional fields.
func NormalizeIBANUA(raw string) (string, error) {
	cleaned := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	if cleaned == "" {
		return "", nil
	}
	if !strings.HasPrefix(cleaned, "UA") {
		return "", errors.New("IBAN має починатися з 'UA'")
	}
	if len(cleaned) != 29 {
		return "", errors.New("IBAN в Україні має містити 29 символів")
	}
	if !ibanCharsRe.MatchString(cleaned) {
		return "", errors.New("IBAN може містити лише латинські літери та цифри")
	}
	if !mod97(cleaned) {
		return "", errors.New("IBAN не пройшов перевірку за MOD-97, перевірте номер")
	}
	return cleaned, nil
}
