// Package wpx derives the prefix of a callsign as counted by the CQ WPX
// contest. The WPX prefix is independent of the DXCC entity table.
package wpx

import (
	"strings"

	"github.com/user00265/hamtools/internal/callsign"
)

// Derive returns the WPX prefix of call.
//
// The callsign is split on '/' into at most three segments: an optional
// prefix a, the call root b and an optional suffix c. A trailing QRP or
// LGT segment carries no prefix information and is dropped first.
func Derive(call string) (string, error) {
	call = strings.ToUpper(strings.TrimSpace(call))
	if call == "" {
		return "", &InvalidCallsignError{Callsign: call, Reason: "empty callsign"}
	}

	segs := callsign.Segments(call)
	for _, s := range segs {
		if s == "" {
			return "", &InvalidCallsignError{Callsign: call, Reason: "empty segment"}
		}
	}
	if n := len(segs); n > 1 && isPowerMarker(segs[n-1]) {
		segs = segs[:n-1]
	}

	var a, b, c string
	switch len(segs) {
	case 1:
		b = segs[0]
	case 2:
		a, b, c = splitPair(segs[0], segs[1])
	case 3:
		a, b, c = segs[0], segs[1], segs[2]
	default:
		return "", &InvalidCallsignError{Callsign: call, Reason: "too many segments"}
	}

	if callsign.IsDigits(b) {
		return "", &InvalidCallsignError{Callsign: call, Reason: "call root " + b + " is all digits"}
	}

	switch {
	case a == "" && c == "":
		return rootPrefix(b), nil
	case a == "":
		switch {
		case len(c) == 1 && callsign.IsDigits(c):
			return withDistrict(b, c), nil
		case isOperatingMarker(c):
			return rootPrefix(b), nil
		}
		return padPrefix(c), nil
	default:
		// A maritime or aeronautical mobile is not operating from a's
		// country, so the home call decides.
		if c == "MM" || c == "AM" {
			return rootPrefix(b), nil
		}
		return padPrefix(a), nil
	}
}

// splitPair decides which part of a two-segment callsign is the call root.
// The second segment is a suffix when it is shorter than three characters
// ("W1AW/4", "W1AW/MM", "DL1ABC/PA") or when the first segment is a
// complete call ("W1AW/KH6", "W1AW/VP2E"). Otherwise the first segment is
// a foreign prefix ("KH6/W1AW", "F/W1AW").
func splitPair(x, y string) (a, b, c string) {
	if len(y) < 3 || looksLikeCall(x) {
		return "", x, y
	}
	return x, y, ""
}

// looksLikeCall reports whether s ends in a digit followed by letters.
func looksLikeCall(s string) bool {
	t := strings.TrimRight(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	return len(t) < len(s) && callsign.EndsWithDigit(t)
}

// rootPrefix is the prefix of a bare call root: everything up to its last
// digit, or its first two letters plus "0" when it has no digit.
func rootPrefix(b string) string {
	if run := callsign.DigitRun(b); run != "" {
		return run
	}
	return firstTwo(b) + "0"
}

// withDistrict replaces the call area digits of b with the single digit d
// ("W1AW/4" -> "W4"). Calls shaped like K12 keep their digits and take d
// appended.
func withDistrict(b, d string) string {
	run := callsign.DigitRun(b)
	if run == "" {
		return firstTwo(b) + d
	}
	if isLetterDigitDigit(run) {
		return run + d
	}
	return strings.TrimRight(run, "0123456789") + d
}

func padPrefix(p string) string {
	if callsign.EndsWithDigit(p) {
		return p
	}
	return p + "0"
}

func firstTwo(s string) string {
	if len(s) > 2 {
		return s[:2]
	}
	return s
}

func isLetterDigitDigit(s string) bool {
	return len(s) == 3 &&
		s[0] >= 'A' && s[0] <= 'Z' &&
		callsign.IsDigits(s[1:])
}

// isPowerMarker matches the low-power suffixes that are not locations.
func isPowerMarker(s string) bool {
	return s == "QRP" || s == "LGT"
}

// isOperatingMarker matches portable, mobile, maritime and aeronautical
// suffixes.
func isOperatingMarker(s string) bool {
	switch s {
	case "P", "M", "MM", "AM", "A":
		return true
	}
	return false
}
