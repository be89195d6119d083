package catalog

import (
	"fmt"
	"strings"
)

// reservedToken is the suffix used for the "done" action of multi-select lists.
const reservedToken = "done"

// Option labels travel inside choice tokens. Spaces become underscores;
// literal underscores and the escape rune itself are escaped with '~'.
const escapeRune = '~'

// EncodeOption turns an option label into a wire-safe token suffix.
// DecodeOption(EncodeOption(label)) == label for every label.
func EncodeOption(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch r {
		case escapeRune:
			b.WriteString("~~")
		case '_':
			b.WriteString("~u")
		case ' ':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DecodeOption reverses EncodeOption.
func DecodeOption(token string) (string, error) {
	var b strings.Builder
	b.Grow(len(token))
	escaped := false
	for _, r := range token {
		if escaped {
			switch r {
			case escapeRune:
				b.WriteRune(escapeRune)
			case 'u':
				b.WriteByte('_')
			default:
				return "", fmt.Errorf("invalid escape %q in option token %q", string(r), token)
			}
			escaped = false
			continue
		}
		switch r {
		case escapeRune:
			escaped = true
		case '_':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		return "", fmt.Errorf("dangling escape in option token %q", token)
	}
	return b.String(), nil
}
