package capture

import (
	"errors"
	"fmt"
)

// Sentinel errors for session operations.
var (
	// ErrUnsupportedCapability is returned when the host lacks the capability
	// an operation needs (stream acquisition or device enumeration).
	ErrUnsupportedCapability = errors.New("capture: unsupported capability")

	// ErrAcquisitionFailed is returned when the host rejects or cannot
	// complete a stream request.
	ErrAcquisitionFailed = errors.New("capture: stream acquisition failed")

	// ErrStreamNotActive is returned when an operation needs a live stream
	// and there is none.
	ErrStreamNotActive = errors.New("capture: stream is not active")
)

// AcquisitionError carries the host's acquisition failure unchanged.
type AcquisitionError struct {
	Constraints Constraints
	Err         error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("capture: acquire %s: %v", e.Constraints, e.Err)
}

// Unwrap returns the host error.
func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// Is reports ErrAcquisitionFailed as a match so callers can test the kind.
func (e *AcquisitionError) Is(target error) bool {
	return target == ErrAcquisitionFailed
}
