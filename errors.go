package usage

// This file defines the contract-violation errors surfaced by send methods.
// These are the only errors a Session ever returns from a send: transport
// failures are swallowed so telemetry can never break the host application.

import (
	"errors"
	"fmt"
)

var (
	// ErrNegativeEventValue is returned when an event value is negative.
	// Event values are rejected rather than clamped so the caller bug is
	// visible instead of silently corrupted.
	ErrNegativeEventValue = errors.New("usage: event value must be non-negative")

	// ErrMissingField is returned when a required hit field is empty.
	ErrMissingField = errors.New("usage: required field is empty")
)

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}
