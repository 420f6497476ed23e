package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is returned when a message's command is outside the vocabulary.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDeviceFailure wraps every failure reported by a device operation.
	ErrDeviceFailure = errors.New("device failure")

	// ErrValidation is returned for malformed plan parameters, before any message runs.
	ErrValidation = errors.New("invalid plan parameters")

	// ErrCallbackFailure is returned when a subscriber fails during publish.
	ErrCallbackFailure = errors.New("callback failure")

	// ErrCancelled marks a run stopped by an external request.
	ErrCancelled = errors.New("run cancelled")

	// ErrStop may be returned by a plan to end its run early without failing it.
	ErrStop = errors.New("plan requested stop")

	// ErrIllegalSequence is returned for create/save messages out of order.
	ErrIllegalSequence = errors.New("illegal message sequence")

	// ErrRunInProgress is returned when a run is requested while another one is active.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrDeviceNotFound is returned when a device name cannot be resolved.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrRunNotFound is returned by document stores for unknown run UIDs.
	ErrRunNotFound = errors.New("run not found")
)

// DeviceError describes a failed device operation.
type DeviceError struct {
	Device string
	Op     Command
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %q failed on %s: %v", e.Device, e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *DeviceError) Unwrap() []error {
	return []error{ErrDeviceFailure, e.Err}
}

// CallbackError describes a subscriber that failed while a document was published.
type CallbackError struct {
	DocType DocType
	Index   int
	Err     error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback #%d for %q failed: %v", e.Index, e.DocType, e.Err)
}

func (e *CallbackError) Unwrap() []error {
	return []error{ErrCallbackFailure, e.Err}
}

// ValidationError points at the plan parameter that was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid is a shorthand for building a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
