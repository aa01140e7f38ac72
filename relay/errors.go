package relay

import (
	"errors"
	"fmt"

	"github.com/nostrsync/negsync/negentropy"
)

var (
	// ErrSessionActive is returned when running a session that was already started.
	ErrSessionActive = errors.New("sync session already active")
	// ErrTimeout is returned when the session didn't finish in time.
	ErrTimeout = errors.New("sync session timeout")
	// ErrDisconnected is returned when the relay disconnects during a session.
	ErrDisconnected = errors.New("relay disconnected during sync session")
	// ErrNotConnected is returned when sending to a relay that is not connected.
	ErrNotConnected = errors.New("relay is not connected")
	// ErrRelayUnsupported is returned when the relay does not support negentropy.
	ErrRelayUnsupported = errors.New("relay does not support negentropy")
	// ErrProtocolFormat is returned for malformed messages.
	ErrProtocolFormat = negentropy.ErrProtocolFormat
)

// RelayError is the reason sent by the relay in NEG-ERR.
type RelayError struct {
	Relay  string
	Reason string
}

// Error implements error.
func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s sync error: %s", e.Relay, e.Reason)
}

// Is makes errors.Is(err, ErrRelayUnsupported) true when the relay says it
// doesn't support negentropy.
func (e *RelayError) Is(target error) bool {
	return target == ErrRelayUnsupported && IsNegentropyUnsupported(e.Reason)
}
