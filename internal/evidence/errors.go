package evidence

import (
	"fmt"

	"micromanagerr/internal/services"
)

// MalformedError reports probe output that lacks or corrupts the fields the
// source requires. It matches services.ErrMalformedProbeOutput.
type MalformedError struct {
	Source Source
	Reason string
	Err    error
}

func (e *MalformedError) Error() string {
	msg := fmt.Sprintf("malformed %s output: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedError) Unwrap() []error {
	if e.Err == nil {
		return []error{services.ErrMalformedProbeOutput}
	}
	return []error{services.ErrMalformedProbeOutput, e.Err}
}

func malformed(source Source, reason string, err error) error {
	return &MalformedError{Source: source, Reason: reason, Err: err}
}
