// Package contact extracts a phone number and a name from one line of free
// text.
//
// Two policies exist. Lenient accepts the first phone-looking substring as
// typed. Strict requires a ten digit national number, optionally preceded by
// a 7 or 8, and normalizes it to +7XXXXXXXXXX.
package contact

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Policy selects the validation strictness.
type Policy string

const (
	PolicyLenient Policy = "lenient"
	PolicyStrict  Policy = "strict"
)

// DefaultPolicy is used when no policy is configured.
const DefaultPolicy = PolicyLenient

// NationalPrefix is prepended to the ten national digits in strict mode.
const NationalPrefix = "+7"

// RetryMessage is shown to the user when no phone number could be found.
const RetryMessage = "⚠️ Please send your full name and phone number in one line.\n" +
	"Accepted formats: +79001234567, 89001234567, +7 (900) 123-45-67\n" +
	"Example: Ivanov Ivan +79001234567"

// ErrNoPhone is wrapped by every ParseError.
var ErrNoPhone = errors.New("no phone number found")

var (
	lenientPhone = regexp.MustCompile(`\+?\d[\d\s\-()]{5,}\d`)
	nonDigit     = regexp.MustCompile(`\D`)
	strictDigits = regexp.MustCompile(`[78]?(\d{10})`)
	strictNumber = regexp.MustCompile(`^[78]?(\d{10})$`)
	// A phone-like run must contain a digit, so spaces between words survive.
	phoneRun = regexp.MustCompile(`\+?\(?\d[\d\s\-()]*`)
)

// Contact is the parsed result. Name may be empty.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ParseError is a recoverable validation failure.
type ParseError struct {
	Policy Policy
	Input  string
	// Message is safe to show to the end user.
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("contact parse failed (%s): no phone number in %q", e.Policy, e.Input)
}

func (e *ParseError) Unwrap() error {
	return ErrNoPhone
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultPolicy, nil
	case PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown contact policy %q (want %q or %q)", s, PolicyLenient, PolicyStrict)
	}
}

// Parser parses contact lines with a fixed policy.
type Parser struct {
	policy Policy
}

// NewParser creates a parser; an unknown policy falls back to DefaultPolicy.
func NewParser(p Policy) *Parser {
	if p != PolicyLenient && p != PolicyStrict {
		p = DefaultPolicy
	}
	return &Parser{policy: p}
}

// Policy returns the parser's policy.
func (p *Parser) Policy() Policy {
	return p.policy
}

// Parse extracts the contact from text according to the parser's policy.
// On failure it returns a *ParseError.
func (p *Parser) Parse(text string) (Contact, error) {
	if p.policy == PolicyStrict {
		return ParseStrict(text)
	}
	return ParseLenient(text)
}

// ParseLenient takes the first phone-looking substring as the phone and the
// rest of the text as the name.
func ParseLenient(text string) (Contact, error) {
	text = strings.TrimSpace(text)
	match := lenientPhone.FindString(text)
	if match == "" {
		return Contact{}, &ParseError{Policy: PolicyLenient, Input: text, Message: RetryMessage}
	}
	return Contact{
		Phone: strings.TrimSpace(match),
		Name:  strings.TrimSpace(strings.ReplaceAll(text, match, "")),
	}, nil
}

// ParseStrict finds an optional 7 or 8 followed by ten digits and normalizes
// the phone to NationalPrefix plus those ten digits. Whole numbers typed
// inside a phone-like run win; otherwise the digit stream of the entire text
// is searched. The name is text with every phone-like run removed.
func ParseStrict(text string) (Contact, error) {
	text = strings.TrimSpace(text)
	national, ok := strictNational(text)
	if !ok {
		return Contact{}, &ParseError{Policy: PolicyStrict, Input: text, Message: RetryMessage}
	}
	name := phoneRun.ReplaceAllString(text, " ")
	return Contact{
		Phone: NationalPrefix + national,
		Name:  strings.Join(strings.Fields(name), " "),
	}, nil
}

// strictNational returns the ten national digits of the phone in text.
// Within each phone-like run it tries consecutive space-separated pieces so
// that a stray number next to the phone, as in "Anna 2 89001234567", is not
// merged into it.
func strictNational(text string) (string, bool) {
	for _, run := range phoneRun.FindAllString(text, -1) {
		pieces := strings.Fields(run)
		for i := range pieces {
			var digits string
			best := ""
			for _, piece := range pieces[i:] {
				digits += nonDigit.ReplaceAllString(piece, "")
				if len(digits) > 11 {
					break
				}
				if m := strictNumber.FindStringSubmatch(digits); m != nil {
					best = m[1]
				}
			}
			if best != "" {
				return best, true
			}
		}
	}
	m := strictDigits.FindStringSubmatch(nonDigit.ReplaceAllString(text, ""))
	if m == nil {
		return "", false
	}
	return m[1], true
}
