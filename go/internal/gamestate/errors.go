package gamestate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HardStopError is returned when the server explicitly says it is unavailable.
// Polling is suspended for a cool-down window when it is seen.
type HardStopError struct {
	Status int
}

func (e *HardStopError) Error() string {
	return fmt.Sprintf("game server unavailable: status %d", e.Status)
}

// TransientError wraps a failure that is retried on the next normal tick:
// timeouts, connection errors, unexpected payloads.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Class is the polling error class.
type Class int

const (
	ClassNone Class = iota
	ClassTransient
	ClassHardStop
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassHardStop:
		return "hard_stop"
	default:
		return "unknown"
	}
}

// IsHardStopStatus reports whether an HTTP status means "unavailable".
func IsHardStopStatus(status int) bool {
	return status == http.StatusNotImplemented || status == http.StatusServiceUnavailable
}

// IsHardStop reports whether err carries a hard-stop signal.
func IsHardStop(err error) bool {
	var hs *HardStopError
	return errors.As(err, &hs)
}

// Classify maps any poll error to its class. Everything that is not an
// explicit hard stop is transient, including context deadlines.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case IsHardStop(err):
		return ClassHardStop
	default:
		return ClassTransient
	}
}

// Transient wraps err as a TransientError unless it is already classified.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var hs *HardStopError
	if errors.As(err, &hs) {
		return err
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}
