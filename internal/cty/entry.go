package cty

import (
	"strconv"
	"strings"
)

// TestEntry is one matchable token of an entity. Override fields are nil
// when the token does not carry them and the entity default applies.
type TestEntry struct {
	Raw   string // token exactly as given, e.g. "=KC4AAA(29)[9]"
	Exact bool   // token began with '=': matches one full callsign only
	Key   string // upper-cased match key without '=' and override suffixes

	CQ        *int
	ITU       *int
	Continent *string
	Latitude  *float64
	Longitude *float64
	UTCOffset *float64
}

// HasOverrides reports whether the entry replaces any entity default.
func (e TestEntry) HasOverrides() bool {
	return e.CQ != nil || e.ITU != nil || e.Continent != nil ||
		e.Latitude != nil || e.Longitude != nil || e.UTCOffset != nil
}

// Apply returns a copy of entity with the entry's overrides substituted.
func (e TestEntry) Apply(entity Entity) Entity {
	if e.CQ != nil {
		entity.CQZone = *e.CQ
	}
	if e.ITU != nil {
		entity.ITUZone = *e.ITU
	}
	if e.Continent != nil {
		entity.Continent = *e.Continent
	}
	if e.Latitude != nil {
		entity.Latitude = *e.Latitude
	}
	if e.Longitude != nil {
		entity.Longitude = *e.Longitude
	}
	if e.UTCOffset != nil {
		entity.UTCOffset = *e.UTCOffset
	}
	return entity
}

// overrideOpeners lists the characters that end the match key.
const overrideOpeners = "([<{~"

// ParseToken parses a single cty.dat token such as "W", "3Y/b",
// "=KC4AAA(29)[9]" or "VK9X<-10.5/-105.7>{OC}~-7.0~".
//
// Suffixes: (n) CQ zone, [n] ITU zone, <lat/lon> coordinates,
// {CC} continent, ~h~ UTC offset.
func ParseToken(raw string) (TestEntry, error) {
	entry := TestEntry{Raw: raw}
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "=") {
		entry.Exact = true
		s = s[1:]
	}

	keyEnd := strings.IndexAny(s, overrideOpeners)
	if keyEnd < 0 {
		keyEnd = len(s)
	}
	entry.Key = strings.ToUpper(strings.TrimSpace(s[:keyEnd]))
	if entry.Key == "" {
		return TestEntry{}, &MalformedEntryError{Token: raw, Reason: "empty match key"}
	}

	rest := s[keyEnd:]
	for rest != "" {
		var closer byte
		switch rest[0] {
		case '(':
			closer = ')'
		case '[':
			closer = ']'
		case '<':
			closer = '>'
		case '{':
			closer = '}'
		case '~':
			closer = '~'
		default:
			return TestEntry{}, &MalformedEntryError{Token: raw, Reason: "unexpected character " + strconv.QuoteRune(rune(rest[0]))}
		}
		end := strings.IndexByte(rest[1:], closer)
		if end < 0 {
			return TestEntry{}, &MalformedEntryError{Token: raw, Reason: "unterminated " + string(rest[0])}
		}
		body := rest[1 : end+1]
		if err := entry.setOverride(rest[0], body); err != nil {
			return TestEntry{}, &MalformedEntryError{Token: raw, Reason: err.Error()}
		}
		rest = rest[end+2:]
	}
	return entry, nil
}

func (e *TestEntry) setOverride(opener byte, body string) error {
	switch opener {
	case '(':
		n, err := strconv.Atoi(body)
		if err != nil {
			return errf("bad CQ zone %q", body)
		}
		e.CQ = &n
	case '[':
		n, err := strconv.Atoi(body)
		if err != nil {
			return errf("bad ITU zone %q", body)
		}
		e.ITU = &n
	case '<':
		lat, lon, ok := strings.Cut(body, "/")
		if !ok {
			return errf("bad coordinates %q", body)
		}
		la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		lo, err2 := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err1 != nil || err2 != nil {
			return errf("bad coordinates %q", body)
		}
		e.Latitude, e.Longitude = &la, &lo
	case '{':
		cont := strings.ToUpper(strings.TrimSpace(body))
		if cont == "" {
			return errf("empty continent")
		}
		e.Continent = &cont
	case '~':
		off, err := strconv.ParseFloat(strings.TrimSpace(body), 64)
		if err != nil {
			return errf("bad UTC offset %q", body)
		}
		e.UTCOffset = &off
	}
	return nil
}
