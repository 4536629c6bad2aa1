// Package phone turns operator-supplied phone strings into Singapore MSISDNs.
package phone

import "strings"

const countryCode = "65"

// Normalize strips every non-digit from raw and returns the number as
// "65" followed by eight local digits. The second return value is false when
// the digits match none of the accepted shapes. Number ranges are not checked.
func Normalize(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	switch {
	case strings.HasPrefix(s, countryCode) && len(s) == 10:
		return s, true
	case len(s) == 8:
		return countryCode + s, true
	case len(s) == 9 && s[0] == '0':
		return countryCode + s[1:], true
	}
	return "", false
}
