package dxcc

import (
	"errors"
	"fmt"
)

// ErrNoMatch is matched by every NoMatchError.
var ErrNoMatch = errors.New("no DXCC match")

// NoMatchError is returned when no table entry matches a callsign.
type NoMatchError struct {
	Callsign string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no DXCC match for callsign %q", e.Callsign)
}

func (e *NoMatchError) Is(target error) bool {
	return target == ErrNoMatch
}
