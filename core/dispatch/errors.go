package dispatch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies terminal assignment failures.
type ErrorKind string

const (
	// KindNoVehicle means no vehicle was available inside the service radius.
	KindNoVehicle ErrorKind = "NoVehicleAvailable"
	// KindNoCrew means no crew member of any tier remained for a required slot.
	KindNoCrew ErrorKind = "NoCrewAvailable"
	// KindInvalidLocation means the incident coordinates failed validation.
	KindInvalidLocation ErrorKind = "InvalidLocation"
	// KindPredictionUnavailable means the prediction collaborator timed out or
	// errored. It is always recovered locally via fallback and only surfaces
	// when the deterministic fallback itself failed.
	KindPredictionUnavailable ErrorKind = "PredictionUnavailable"
)

// AssignmentError is a terminal failure for one dispatch request. It carries
// the machine-readable kind together with a human-readable reason.
type AssignmentError struct {
	Kind   ErrorKind
	Reason string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func newError(kind ErrorKind, format string, args ...any) *AssignmentError {
	return &AssignmentError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, or the empty string for foreign errors.
func KindOf(err error) ErrorKind {
	var ae *AssignmentError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
