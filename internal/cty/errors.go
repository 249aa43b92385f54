package cty

import (
	"errors"
	"fmt"
)

// ErrMalformedEntry is matched by every MalformedEntryError.
var ErrMalformedEntry = errors.New("malformed cty entry")

// MalformedEntryError reports a token or canonical prefix that cannot be
// turned into a table entry.
type MalformedEntryError struct {
	Entity string // canonical prefix or name of the owning entity, if known
	Token  string
	Reason string
}

func (e *MalformedEntryError) Error() string {
	switch {
	case e.Entity != "" && e.Token != "":
		return fmt.Sprintf("malformed cty entry %q in %s: %s", e.Token, e.Entity, e.Reason)
	case e.Token != "":
		return fmt.Sprintf("malformed cty entry %q: %s", e.Token, e.Reason)
	case e.Entity != "":
		return fmt.Sprintf("malformed cty entry in %s: %s", e.Entity, e.Reason)
	}
	return "malformed cty entry: " + e.Reason
}

func (e *MalformedEntryError) Is(target error) bool {
	return target == ErrMalformedEntry
}

func errf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
