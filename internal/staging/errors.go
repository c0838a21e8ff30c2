package staging

import (
	"fmt"
	"time"
)

// InitiationError reports that the provider accepted the upload request but
// returned no usable file handle.
type InitiationError struct {
	Cause error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("failed to initiate staging upload: %v", e.Cause)
}

func (e *InitiationError) Unwrap() error {
	return e.Cause
}

// TransferError reports a network or timeout failure while transferring the
// payload to the staging area.
type TransferError struct {
	Cause error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to transfer payload to staging area: %v", e.Cause)
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}

// ReadinessTimeoutError reports that a staged file never reached the active
// state within the configured deadline. LastState is the most recent state
// observed from the provider, or "unknown" if no poll succeeded.
type ReadinessTimeoutError struct {
	LastState State
	Elapsed   time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("staged file not active after %s (last observed state: %s)", e.Elapsed.Round(time.Millisecond), e.LastState)
}
