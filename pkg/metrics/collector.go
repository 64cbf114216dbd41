package metrics

import "time"

// Collector receives server telemetry events. Implementations must be safe
// for concurrent use.
type Collector interface {
	// PacketReceived records one datagram of the given size.
	PacketReceived(bytes int)

	// LinesDecoded records metric lines accepted by type token.
	LinesDecoded(metricType string, n int)

	// LinesRejected records lines the decoder skipped.
	LinesRejected(n int)

	// ReadError records a socket read failure that did not stop the loop.
	ReadError()

	// VerificationCompleted records one verification and how long it waited.
	VerificationCompleted(mode string, passed bool, elapsed time.Duration)
}

// Noop discards every event.
type Noop struct{}

func (Noop) PacketReceived(int)                                {}
func (Noop) LinesDecoded(string, int)                          {}
func (Noop) LinesRejected(int)                                 {}
func (Noop) ReadError()                                        {}
func (Noop) VerificationCompleted(string, bool, time.Duration) {}

var _ Collector = Noop{}
