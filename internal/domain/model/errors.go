package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMutationInFlight is the busy rejection from the optimistic mutator.
	// Soft by design: callers hint "already in progress", never an error toast.
	ErrMutationInFlight = errors.New("mutation already in flight")

	// ErrAuthExpired is fatal to the session and surfaces as a forced logout.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrMalformedEvent marks an unparsable inbound payload. Dropped and logged.
	ErrMalformedEvent = errors.New("malformed inbound event")

	// ErrOffline is reported once the reconnect budget is exhausted.
	ErrOffline = errors.New("connection lost, retries exhausted")
)

// TransportError wraps a live-transport failure. Fully contained inside the
// connection manager; only terminal disconnection crosses its boundary.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteCallError wraps a failed confirmation call. The optimistic mutator
// rolls back on it and hands it to the caller as a typed result so the UI can
// render context-specific messaging.
type RemoteCallError struct {
	Op     string
	Status int
	Err    error
}

func (e *RemoteCallError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote call %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("remote call %s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
