package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input and caps it at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 {
		if runes := []rune(trimmed); len(runes) > maxLen {
			return string(runes[:maxLen])
		}
	}
	return trimmed
}

// NormalizePhone strips spaces, dashes and brackets from a mobile number,
// keeping a leading plus sign.
func NormalizePhone(input string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(input) {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
