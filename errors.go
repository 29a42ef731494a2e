package rfe

import (
	"errors"
	"fmt"
)

var (
	// ErrPortUnavailable indicates the serial port could not be opened.
	ErrPortUnavailable = errors.New("rfe: serial port unavailable")

	// ErrTimeout indicates the reader did not answer within the budget.
	// The operation may be retried; the settings cache is unchanged.
	ErrTimeout = errors.New("rfe: response timeout")

	// ErrInvalidConfig indicates a caller-supplied setting value violates
	// the reader's constraints. Nothing was sent to the device.
	ErrInvalidConfig = errors.New("rfe: invalid configuration value")

	// ErrMalformedResponse indicates a structurally inconsistent payload
	// in an otherwise checksum-valid frame.
	ErrMalformedResponse = errors.New("rfe: malformed response payload")

	// ErrEncoding indicates a frame could not be built (oversized payload).
	ErrEncoding = errors.New("rfe: frame encoding failed")

	// ErrBusy indicates the reader session is closed or a cyclic inventory
	// is already running.
	ErrBusy = errors.New("rfe: reader busy")
)

// DeviceError is an explicit failure status returned by the reader
// firmware for a command it received and declined. The settings cache is
// left unchanged when a set operation fails this way.
type DeviceError struct {
	Op     string // command name that failed
	Status byte   // vendor status code from the response payload
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("rfe: %s rejected by device: %s (0x%02X)",
		e.Op, StatusDescription(e.Status), e.Status)
}

// IsDeviceError reports whether err wraps a firmware failure status.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
