package contact

import (
	"errors"
	"strings"
	"testing"
)

func TestParseLenient(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantPhone string
		wantName  string
	}{
		{"name then phone", "Ivanov Ivan +79001234567", "+79001234567", "Ivanov Ivan"},
		{"phone then name", "+79161234567 Petrova Anna", "+79161234567", "Petrova Anna"},
		{"formatted phone kept as typed", "Anna +7 (916) 123-45-67", "+7 (916) 123-45-67", "Anna"},
		{"seven digits minimum", "Bob 1234567", "1234567", "Bob"},
		{"phone only", "  89001234567  ", "89001234567", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseLenient(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Phone != tt.wantPhone {
				t.Errorf("phone = %q, want %q", c.Phone, tt.wantPhone)
			}
			if c.Name != tt.wantName {
				t.Errorf("name = %q, want %q", c.Name, tt.wantName)
			}
		})
	}
}

func TestParseLenientFailures(t *testing.T) {
	for _, input := range []string{"Ivanov Ivan", "Ivan 123456", "", "+7"} {
		_, err := ParseLenient(input)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("input %q: expected *ParseError, got %v", input, err)
		}
		if !errors.Is(err, ErrNoPhone) {
			t.Errorf("input %q: error should wrap ErrNoPhone", input)
		}
		if pe.Policy != PolicyLenient || pe.Message != RetryMessage {
			t.Errorf("input %q: unexpected error fields %+v", input, pe)
		}
	}
}

func TestParseStrict(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantPhone string
		wantName  string
	}{
		{"leading 8 normalized", "Ivanov Ivan 89001234567", "+79001234567", "Ivanov Ivan"},
		{"leading +7 kept", "Ivanov Ivan +79001234567", "+79001234567", "Ivanov Ivan"},
		{"ten digits", "Ivanov Ivan 9001234567", "+79001234567", "Ivanov Ivan"},
		{"formatted", "+7 (916) 123-45-67 Petrova Anna", "+79161234567", "Petrova Anna"},
		{"phone in the middle", "Anna 8-916-123-45-67 Petrova", "+79161234567", "Anna Petrova"},
		{"no name", "89001234567", "+79001234567", ""},
		{"stray digit before phone", "Anna 2 89001234567", "+79001234567", "Anna"},
		{"stray digit after phone", "Anna 89001234567 2", "+79001234567", "Anna"},
		{"apartment number before formatted phone", "Anna kv 12 +7 (916) 123-45-67", "+79161234567", "Anna kv"},
		{"phone split by a word", "8900 call 1234567", "+79001234567", "call"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseStrict(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Phone != tt.wantPhone {
				t.Errorf("phone = %q, want %q", c.Phone, tt.wantPhone)
			}
			if c.Name != tt.wantName {
				t.Errorf("name = %q, want %q", c.Name, tt.wantName)
			}
		})
	}
}

func TestParseStrictFailures(t *testing.T) {
	for _, input := range []string{"Ivanov Ivan 123", "Ivanov Ivan", "900 123 45 6"} {
		_, err := ParseStrict(input)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("input %q: expected *ParseError, got %v", input, err)
		}
		if pe.Policy != PolicyStrict {
			t.Errorf("input %q: policy = %s", input, pe.Policy)
		}
		if !strings.Contains(pe.Message, "Accepted formats") {
			t.Errorf("input %q: message should list accepted formats", input)
		}
	}
}

func TestParserDispatchesOnPolicy(t *testing.T) {
	input := "Ivanov Ivan 89001234567"
	lenient, err := NewParser(PolicyLenient).Parse(input)
	if err != nil {
		t.Fatalf("lenient: %v", err)
	}
	if lenient.Phone != "89001234567" {
		t.Errorf("lenient phone = %q", lenient.Phone)
	}
	strict, err := NewParser(PolicyStrict).Parse(input)
	if err != nil {
		t.Fatalf("strict: %v", err)
	}
	if strict.Phone != "+79001234567" {
		t.Errorf("strict phone = %q", strict.Phone)
	}
	if NewParser("bogus").Policy() != DefaultPolicy {
		t.Error("unknown policy should fall back to default")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", DefaultPolicy, false},
		{"lenient", PolicyLenient, false},
		{" STRICT ", PolicyStrict, false},
		{"loose", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
