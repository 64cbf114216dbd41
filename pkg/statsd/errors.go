package statsd

import (
	"errors"
	"fmt"
)

// Decoder errors. Each rejected line carries one of these inside a LineError.
var (
	ErrMalformedLine     = errors.New("malformed metric line")
	ErrUnknownType       = errors.New("unknown metric type")
	ErrInvalidValue      = errors.New("invalid metric value")
	ErrInvalidSampleRate = errors.New("sample rate must be in (0,1]")
	ErrEmptyName         = errors.New("metric name is empty")
)

// Lifecycle errors.
var (
	// ErrServerStopped is returned when starting a server that has already been stopped.
	ErrServerStopped = errors.New("server is stopped")

	// ErrAlreadyRunning is returned when starting a server that is running.
	ErrAlreadyRunning = errors.New("server is already running")

	// ErrNotRunning is returned by operations that need a bound socket.
	ErrNotRunning = errors.New("server is not running")

	// ErrCallNotFound is returned by VerifyCall when the datagram was never received.
	ErrCallNotFound = errors.New("call not received")

	// ErrUnexpectedCall is returned by VerifyNoMoreCalls when the datagram is still pending.
	ErrUnexpectedCall = errors.New("unexpected call received")
)

// LineError describes why a single line was rejected.
type LineError struct {
	Line string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Line)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
