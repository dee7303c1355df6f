package upstream

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is wrapped in a TransportError when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit open")

// TransportError means the remote state is unknown: the call failed on the
// network, timed out, was short-circuited, or got an unexpected status.
type TransportError struct {
	Service    string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: transport failure: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponseError means a successful response could not be decoded.
type MalformedResponseError struct {
	Service string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Service, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed reports whether err carries a MalformedResponseError.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}
