package callsign

import "strings"

// Normalize removes common system suffixes and invalid characters
// from a raw callsign string, returning the cleaned upper-case form.
// Cluster and POTA feeds append markers such as "-#" that are not part
// of the callsign.
func Normalize(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))

	// Remove the literal "-#" suffix (POTA system marker)
	if idx := strings.Index(raw, "-#"); idx != -1 {
		raw = raw[:idx]
	}
	// Remove any remaining lone '#' characters
	raw = strings.ReplaceAll(raw, "#", "")
	// Trim stray hyphens left by replacements
	raw = strings.Trim(raw, "- ")

	return strings.TrimSpace(raw)
}

// Segments splits a callsign on '/' without interpreting the parts.
func Segments(call string) []string {
	return strings.Split(call, "/")
}

// IsDigits reports whether s is non-empty and made of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// HasDigit reports whether s contains an ASCII digit.
func HasDigit(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

// EndsWithDigit reports whether the last byte of s is an ASCII digit.
func EndsWithDigit(s string) bool {
	return s != "" && isDigit(s[len(s)-1])
}

// DigitRun returns the leading part of s up to and including its last
// digit ("W1AW" -> "W1", "3D2ABC" -> "3D2"). It returns "" when s has no
// digit.
func DigitRun(s string) string {
	i := strings.LastIndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if i < 0 {
		return ""
	}
	return s[:i+1]
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
