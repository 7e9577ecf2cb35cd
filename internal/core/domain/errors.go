package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a route, region, POI or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIndexOutOfRange is returned when an edit addresses a point that does not exist.
	ErrIndexOutOfRange = errors.New("point index out of range")

	// ErrNoFeasibleTrip is returned when the routing service finds no trip through the waypoints.
	ErrNoFeasibleTrip = errors.New("no feasible trip through waypoints")

	// ErrNoMatch is returned when the routing service cannot match a path to roads.
	ErrNoMatch = errors.New("no road match for path")

	// ErrSuperseded is returned when a newer request or edit made a routing result stale.
	ErrSuperseded = errors.New("request superseded")
)

// ValidationError is a blocking, user-correctable input problem.
// No state is mutated when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MinPathPoints is the smallest path eligible for simplification, snapping
// and length-based metrics.
const MinPathPoints = 2
