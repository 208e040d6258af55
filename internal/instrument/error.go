package instrument

import (
	"errors"
	"fmt"
)

// ErrIncomplete is returned when an operation-complete query is answered
// with anything but the completion marker.
var ErrIncomplete = errors.New("operation not complete")

// CommunicationError is an I/O failure while talking to an instrument.
type CommunicationError struct {
	Device string // instrument identity or address
	Op     string // command or operation that failed
	Err    error
}

// NewCommunicationError wraps err as a failure of op on device
func NewCommunicationError(device, op string, err error) *CommunicationError {
	return &CommunicationError{Device: device, Op: op, Err: err}
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Device, e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// IsCommunication reports whether err was caused by instrument I/O.
func IsCommunication(err error) bool {
	var ce *CommunicationError
	return errors.As(err, &ce)
}
