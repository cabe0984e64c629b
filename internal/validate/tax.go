package validate

import (
	"errors"
	"regexp"
)

var nonDigitRe = regexp.MustCompile(`\D+`)

// rnokppOK verifies the RNOKPP (10-digit personal tax number) control
// digit with its weighted checksum.
func rnokppOK(code string) bool {
	if len(code) != 10 {
		return false
	}
	weights := []int{-1, 5, 7, 9, 4, 6, 10, 5, 7}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(code[i]-'0') * weights[i]
	}
	// The first weight is negative, so take the euclidean remainder.
	ctrl := (((sum % 11) + 11) % 11) % 10
	return ctrl == int(code[9]-'0')
}

// edrpouOK verifies the EDRPOU (8- or 10-digit company code) control
// digit. Two weight sets apply: when the first sum yields 10, the
// second set is used, and a second 10 collapses to 0.
func edrpouOK(code string) bool {
	if len(code) != 8 && len(code) != 10 {
		return false
	}
	digits := make([]int, len(code))
	for i := range code {
		digits[i] = int(code[i] - '0')
	}

	var weights1, weights2 []int
	var ctrlIdx int
	if len(digits) == 8 {
		weights1 = []int{1, 2, 3, 4, 5, 6, 7}
		weights2 = []int{3, 4, 5, 6, 7, 8, 9}
		ctrlIdx = 7
	} else {
		weights1 = []int{1, 2, 3, 4, 5, 6, 7, 8, 9}
		weights2 = []int{3, 4, 5, 6, 7, 8, 9, 10, 11}
		ctrlIdx = 9
	}

	sum := 0
	for i, w := range weights1 {
		sum += digits[i] * w
	}
	ctrl := sum % 11
	if ctrl == 10 {
		sum = 0
		for i, w := range weights2 {
			sum += digits[i] * w
		}
		ctrl = sum % 11
		if ctrl == 10 {
			ctrl = 0
		}
	}
	return ctrl == digits[ctrlIdx]
}

// NormalizeRNOKPP validates a personal tax number (exactly 10 digits
// plus checksum), stripping any separators first.
func NormalizeRNOKPP(raw string) (string, error) {
	cleaned := nonDigitRe.ReplaceAllString(raw, "")
	if len(cleaned) != 10 {
		return "", errors.New("РНОКПП має містити рівно 10 цифр")
	}
	if !rnokppOK(cleaned) {
		return "", errors.New("РНОКПП не пройшов перевірку контрольної цифри")
	}
	return cleaned, nil
}

// NormalizeEDRPOU validates a company registration code (8 or 10 digits
// plus checksum).
func NormalizeEDRPOU(raw string) (string, error) {
	cleaned := nonDigitRe.ReplaceAllString(raw, "")
	if len(cleaned) != 8 && len(cleaned) != 10 {
		return "", errors.New("ЄДРПОУ має містити 8 або 10 цифр")
	}
	if !edrpouOK(cleaned) {
		return "", errors.New("ЄДРПОУ не пройшов перевірку контрольної цифри")
	}
	return cleaned, nil
}
