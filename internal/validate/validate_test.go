package validate

import "testing"

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"01.09.2025", "01.09.2025", true},
		{"1.9.2025", "01.09.2025", true},
		{"01-09-2025", "01.09.2025", true},
		{"01/09/25", "01.09.2025", true},
		{"2025-09-01", "01.09.2025", true},
		{"29.02.2024", "29.02.2024", true},
		{"29.02.2025", "", false}, // not a leap year
		{"32.01.2025", "", false},
		{"01.09", "", false}, // year must be explicit
		{"tomorrow", "", false},
	}
	for _, c := range cases {
		got, err := NormalizeDate(c.in)
		if c.ok && err != nil {
			t.Errorf("NormalizeDate(%q) unexpected error: %v", c.in, err)
			continue
		}
		if !c.ok && err == nil {
			t.Errorf("NormalizeDate(%q) expected error, got %q", c.in, got)
			continue
		}
		if c.ok && got != c.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeMoney(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"15000", "15000.00", true},
		{"15 000,50", "15000.50", true},
		{"15000.5", "15000.50", true},
		{"0", "0.00", true},
		{"15000.505", "", false},
		{"-100", "", false},
		{"багато", "", false},
	}
	for _, c := range cases {
		got, err := NormalizeMoney(c.in)
		if c.ok != (err == nil) {
			t.Errorf("NormalizeMoney(%q) error = %v, want ok=%v", c.in, err, c.ok)
			continue
		}
		if c.ok && got != c.want {
			t.Errorf("NormalizeMoney(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  User@Example.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user@example.com" {
		t.Errorf("expected lowercased email, got %q", got)
	}
	if _, err := NormalizeEmail("not-an-email"); err == nil {
		t.Error("expected error for invalid email")
	}
}

func TestNormalizeIBANUA(t *testing.T) {
	valid := "UA743052990000026007233566001"
	got, err := NormalizeIBANUA("ua74 3052 9900 0002 6007 2335 66001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != valid {
		t.Errorf("expected %q, got %q", valid, got)
	}

	if _, err := NormalizeIBANUA("UA743052990000026007233566002"); err == nil {
		t.Error("expected MOD-97 failure for corrupted check digit")
	}
	if _, err := NormalizeIBANUA("DE743052990000026007233566001"); err == nil {
		t.Error("expected error for non-UA prefix")
	}
	if _, err := NormalizeIBANUA("UA7430529900000260072335660"); err == nil {
		t.Error("expected error for wrong length")
	}
	if got, err := NormalizeIBANUA("  "); err != nil || got != "" {
		t.Errorf("empty input should pass through, got %q, %v", got, err)
	}
}

func TestNormalizeRNOKPP(t *testing.T) {
	for _, valid := range []string{"3184710691", "2173046126", "1234567899"} {
		if got, err := NormalizeRNOKPP(valid); err != nil || got != valid {
			t.Errorf("NormalizeRNOKPP(%q) = %q, %v", valid, got, err)
		}
	}
	// Separators are stripped before the checksum.
	if got, err := NormalizeRNOKPP("31 8471 0691"); err != nil || got != "3184710691" {
		t.Errorf("expected separators stripped, got %q, %v", got, err)
	}
	if _, err := NormalizeRNOKPP("3184710692"); err == nil {
		t.Error("expected checksum failure")
	}
	if _, err := NormalizeRNOKPP("12345"); err == nil {
		t.Error("expected length failure")
	}
}

func TestNormalizeEDRPOU(t *testing.T) {
	for _, valid := range []string{"32839773", "00329450", "14339015"} {
		if got, err := NormalizeEDRPOU(valid); err != nil || got != valid {
			t.Errorf("NormalizeEDRPOU(%q) = %q, %v", valid, got, err)
		}
	}
	if _, err := NormalizeEDRPOU("32839774"); err == nil {
		t.Error("expected checksum failure")
	}
	if _, err := NormalizeEDRPOU("123"); err == nil {
		t.Error("expected length failure")
	}
}

func TestNormalizePersonName(t *testing.T) {
	got, err := NormalizePersonName("  іваненко   іван ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Іваненко Іван" {
		t.Errorf("expected capitalized name, got %q", got)
	}
	if _, err := NormalizePersonName("   "); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestValue(t *testing.T) {
	// Unknown types trim and pass through.
	if got, msg := Value("text", "  hello "); got != "hello" || msg != "" {
		t.Errorf("Value(text) = %q, %q", got, msg)
	}
	// Registered types dispatch.
	if got, msg := Value("money", "15 000,50"); got != "15000.50" || msg != "" {
		t.Errorf("Value(money) = %q, %q", got, msg)
	}
	// Failures return the trimmed input and the message as a value.
	got, msg := Value("date", " 99.99.2025 ")
	if msg == "" {
		t.Fatal("expected a validation message")
	}
	if got != "99.99.2025" {
		t.Errorf("expected trimmed raw input back, got %q", got)
	}
}

func TestInferType(t *testing.T) {
	cases := map[string]string{
		"iban":            "iban",
		"bank_iban":       "iban",
		"rnokpp":          "rnokpp",
		"tax_id":          "rnokpp",
		"edrpou":          "edrpou",
		"birth_date":      "date",
		"signed_at":       "date",
		"email":           "email",
		"rent_amount":     "money",
		"pib":             "person_name",
		"legal_address":   "address",
		"unknown_field":   "text",
		"passport_series": "text",
	}
	for in, want := range cases {
		if got := InferType(in); got != want {
			t.Errorf("InferType(%q) = %q, want %q", in, got, want)
		}
	}
}
