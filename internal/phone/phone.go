// Package phone normalizes Moroccan phone numbers into local dialing format.
package phone

import "strings"

const (
	intlPrefix     = "212"
	intlDialPrefix = "00" + intlPrefix
	trunkPrefix    = "0"
)

// Normalize strips every non-digit, replaces the 00212/212 international
// prefixes with the trunk prefix and makes sure a non-empty result starts
// with 0. Prefixes are stripped until none is left so Normalize is
// idempotent. Lengths are not validated.
func Normalize(raw string) string {
	digits := digitsOnly(raw)
	for {
		if rest, ok := strings.CutPrefix(digits, intlDialPrefix); ok {
			digits = trunkPrefix + rest
		} else if rest, ok := strings.CutPrefix(digits, intlPrefix); ok {
			digits = trunkPrefix + rest
		} else {
			break
		}
	}
	if digits != "" && !strings.HasPrefix(digits, trunkPrefix) {
		digits = trunkPrefix + digits
	}
	return digits
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
