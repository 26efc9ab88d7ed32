package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/enginebridge/backend/internal/resilience"
)

var (
	// ErrNotConnected is returned when a call is attempted without an open
	// connection. A local precondition failure: it never counts against the
	// circuit breaker.
	ErrNotConnected = errors.New("bridge client is not connected")

	// ErrConnectionClosed is returned when the connection drops while a call
	// is in flight. Counts as a circuit failure.
	ErrConnectionClosed = errors.New("connection closed while call was in flight")

	// ErrClientDisconnected is returned to pending calls rejected by an
	// explicit Disconnect. Caller-initiated, so not a circuit failure.
	ErrClientDisconnected = errors.New("bridge client disconnected")

	// ErrTimeout is matched by errors.Is against *TimeoutError.
	ErrTimeout = errors.New("bridge call timed out")
)

// TimeoutError is returned when a call's deadline elapses before its
// response arrives. Counts as a circuit failure.
type TimeoutError struct {
	Action  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call %q timed out after %s", e.Action, e.Timeout)
}

// Is reports a match against the ErrTimeout sentinel.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PeerError is an explicit failure reported by a reachable peer. It is
// authoritative: it never triggers fallback and never counts against the
// circuit breaker.
type PeerError struct {
	Action  string
	Code    string
	Message string
}

func (e *PeerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("peer rejected %q: %s (%s)", e.Action, e.Message, e.Code)
	}
	return fmt.Sprintf("peer rejected %q: %s", e.Action, e.Message)
}

// IsTransportFailure reports whether err is a transport-class failure that
// should route the call to the fallback path. Peer-reported errors are not
// transport failures.
func IsTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	var peerErr *PeerError
	if errors.As(err, &peerErr) {
		return false
	}
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, ErrClientDisconnected) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, resilience.ErrCircuitOpen)
}
