// Package ctyfile reads the cty.dat country file format into records for
// cty.Build.
//
// Each entity starts with a header line of eight colon-terminated fields:
//
//	Name:  CQ:  ITU:  Continent:  Lat:  Lon:  UTC offset:  Prefix:
//
// followed by indented lines holding its comma-separated tokens, the last
// one terminated by ';'.
package ctyfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/user00265/hamtools/internal/cty"
)

// ParseError reports a problem at a specific line of the input.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cty.dat line %d: %s", e.Line, e.Reason)
}

// ParseFile opens path and parses it, decoding it from the named charset.
func ParseFile(path, charsetLabel string) ([]cty.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cty file %s: %w", path, err)
	}
	defer f.Close()
	return ParseCharset(f, charsetLabel)
}

// ParseCharset decodes r from the named charset (for example "utf-8" or
// "iso-8859-1") and parses it. An empty label means UTF-8.
func ParseCharset(r io.Reader, charsetLabel string) ([]cty.Record, error) {
	label := strings.TrimSpace(charsetLabel)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return Parse(r)
	}
	decoded, err := charset.NewReaderLabel(label, r)
	if err != nil {
		return nil, fmt.Errorf("unsupported cty charset %q: %w", label, err)
	}
	return Parse(decoded)
}

// Parse reads cty.dat content. Records are returned in file order.
func Parse(r io.Reader) ([]cty.Record, error) {
	var (
		records []cty.Record
		current *cty.Record // entity that continuation lines append to
		closed  bool        // current entity saw its terminating ';'
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if line[0] != ' ' && line[0] != '\t' {
			entity, err := parseHeader(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Reason: err.Error()}
			}
			if current != nil {
				records = append(records, *current)
			}
			current = &cty.Record{Entity: entity}
			closed = false
			continue
		}

		if current == nil {
			return nil, &ParseError{Line: lineNo, Reason: "token line before any entity header"}
		}
		if closed {
			return nil, &ParseError{Line: lineNo, Reason: "token line after ';' of " + current.Entity.Prefix}
		}
		body := strings.TrimSpace(line)
		if strings.HasSuffix(body, ";") {
			closed = true
			body = strings.TrimSuffix(body, ";")
		}
		for _, tok := range strings.Split(body, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			current.Tokens = append(current.Tokens, tok)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cty.dat: %w", err)
	}
	if current != nil {
		records = append(records, *current)
	}
	return records, nil
}

func parseHeader(line string) (cty.Entity, error) {
	fields := strings.Split(line, ":")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	// Trailing ':' leaves an empty ninth field.
	if len(fields) == 9 && fields[8] == "" {
		fields = fields[:8]
	}
	if len(fields) != 8 {
		return cty.Entity{}, fmt.Errorf("header has %d fields, want 8", len(fields))
	}

	cq, err := strconv.Atoi(fields[1])
	if err != nil {
		return cty.Entity{}, fmt.Errorf("bad CQ zone %q", fields[1])
	}
	itu, err := strconv.Atoi(fields[2])
	if err != nil {
		return cty.Entity{}, fmt.Errorf("bad ITU zone %q", fields[2])
	}
	lat, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return cty.Entity{}, fmt.Errorf("bad latitude %q", fields[4])
	}
	lon, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return cty.Entity{}, fmt.Errorf("bad longitude %q", fields[5])
	}
	utc, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return cty.Entity{}, fmt.Errorf("bad UTC offset %q", fields[6])
	}

	return cty.Entity{
		Name:      fields[0],
		CQZone:    cq,
		ITUZone:   itu,
		Continent: fields[3],
		Latitude:  lat,
		Longitude: lon,
		UTCOffset: utc,
		Prefix:    fields[7],
	}, nil
}
