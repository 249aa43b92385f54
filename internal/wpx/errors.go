package wpx

import (
	"errors"
	"fmt"
)

// ErrInvalidCallsign is matched by every InvalidCallsignError.
var ErrInvalidCallsign = errors.New("invalid callsign")

// InvalidCallsignError is returned when a callsign has no usable call root.
type InvalidCallsignError struct {
	Callsign string
	Reason   string
}

func (e *InvalidCallsignError) Error() string {
	return fmt.Sprintf("invalid callsign %q: %s", e.Callsign, e.Reason)
}

func (e *InvalidCallsignError) Is(target error) bool {
	return target == ErrInvalidCallsign
}
