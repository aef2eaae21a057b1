package protocol

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the engine wraps them with
// detail via fmt.Errorf("%w: ...").
var (
	// ErrEncoding: a local buffer is too small for the frame, or a variable
	// buffer is longer than MaxBufLen.
	ErrEncoding = errors.New("urpc: encoding error")

	// ErrProtocolMisuse: the single-request-at-a-time discipline was broken,
	// or a request instance was used twice.
	ErrProtocolMisuse = errors.New("urpc: protocol misuse")

	// ErrUnexpectedReply: the reply header does not belong to the outstanding
	// request. The stream should be treated as desynchronized.
	ErrUnexpectedReply = errors.New("urpc: unexpected reply")

	// ErrTransport wraps I/O failures, including short reads and timeouts.
	ErrTransport = errors.New("urpc: transport error")
)

// TransportError wraps err so that it matches both ErrTransport and err.
func TransportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}

// RemoteError is returned when the device answered with a non-OK status.
// The reply frame was fully consumed, so the session is usable again.
type RemoteError struct {
	ID      ID
	Status  Status
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("urpc: device replied %s to request %d: %s", e.Status, e.ID, e.Message)
}
