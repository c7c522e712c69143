package hashindex

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrMalformedHashIndex = errors.New("malformed hash index")
	ErrUnknownVersion     = errors.New("unknown hash index version")
)

// MalformedError describes why a present hash-index attribute could not be
// decoded.
type MalformedError struct {
	Version Version
	Reason  string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%v (%s): %s", ErrMalformedHashIndex, e.Version, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformedHashIndex
}

func malformed(v Version, format string, args ...interface{}) error {
	return &MalformedError{Version: v, Reason: fmt.Sprintf(format, args...)}
}
