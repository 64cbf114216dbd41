package statsd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/getmockd/mockd-statsd/pkg/logging"
	"github.com/getmockd/mockd-statsd/pkg/metrics"
)

const (
	// DefaultBufferSize is the largest UDP payload read in one call.
	DefaultBufferSize = 65535

	// DefaultStopGracePeriod bounds how long Stop waits for the receive loop.
	DefaultStopGracePeriod = time.Second

	// readErrorBackoff is slept after a failed read so a persistent
	// socket error does not spin the loop.
	readErrorBackoff = DefaultPollInterval

	// socketReadBuffer is requested from the OS so bursts from many
	// senders are not dropped before the loop drains them.
	socketReadBuffer = 4 << 20
)

// State is the lifecycle state of a Listener or Server.
type State int

// Lifecycle states. Created moves to Running on Start and Running moves to
// Stopped on Stop; a stopped instance is never restarted.
const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PacketHandler processes one datagram. payload is only valid for the
// duration of the call.
type PacketHandler func(payload []byte, from net.Addr)

// Listener owns a UDP socket and its receive loop.
type Listener struct {
	handler    PacketHandler
	bufferSize int
	grace      time.Duration

	mu      sync.Mutex
	state   State
	conn    net.PacketConn
	done    chan struct{}
	log     *slog.Logger
	metrics metrics.Collector
}

// NewListener creates a listener that passes every datagram to handler.
func NewListener(handler PacketHandler) *Listener {
	return &Listener{
		handler:    handler,
		bufferSize: DefaultBufferSize,
		grace:      DefaultStopGracePeriod,
		log:        logging.Nop(),
		metrics:    metrics.Noop{},
	}
}

// SetLogger sets the operational logger.
func (l *Listener) SetLogger(log *slog.Logger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if log != nil {
		l.log = log
	} else {
		l.log = logging.Nop()
	}
}

// SetMetrics sets the telemetry collector.
func (l *Listener) SetMetrics(c metrics.Collector) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c == nil {
		c = metrics.Noop{}
	}
	l.metrics = c
}

// SetBufferSize sets the read buffer size used by the receive loop.
func (l *Listener) SetBufferSize(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > 0 {
		l.bufferSize = n
	}
}

// SetStopGracePeriod sets how long Stop waits for the loop to exit.
func (l *Listener) SetStopGracePeriod(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d > 0 {
		l.grace = d
	}
}

// State returns the current lifecycle state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start binds address ("host:port", port 0 for ephemeral) and launches the
// receive loop. ctx bounds the bind only. A failed bind leaves the listener
// in StateCreated so Start may be retried.
func (l *Listener) Start(ctx context.Context, address string) (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateRunning:
		return nil, ErrAlreadyRunning
	case StateStopped:
		return nil, ErrServerStopped
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	if udp, ok := conn.(*net.UDPConn); ok {
		if err := udp.SetReadBuffer(socketReadBuffer); err != nil {
			l.log.Debug("could not enlarge socket read buffer", "error", err)
		}
	}

	l.conn = conn
	l.done = make(chan struct{})
	l.state = StateRunning

	go l.receive(conn, l.done, l.bufferSize, l.log, l.metrics)

	l.log.Info("statsd listener started", "local", conn.LocalAddr().String())
	return conn.LocalAddr(), nil
}

func (l *Listener) receive(conn net.PacketConn, done chan struct{}, size int, log *slog.Logger, m metrics.Collector) {
	defer close(done)

	buf := make([]byte, size)
	for {
		n, from, err := conn.ReadFrom(buf)
		if n > 0 {
			m.PacketReceived(n)
			l.handler(buf[:n], from)
		}
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			m.ReadError()
			log.Error("udp read failed", "error", err)
			time.Sleep(readErrorBackoff)
		}
	}
}

// Stop closes the socket and waits up to the grace period for the receive
// loop to exit. Calling Stop again, or before Start, does nothing.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if l.state != StateRunning {
		l.mu.Unlock()
		return nil
	}
	l.state = StateStopped
	conn, done, grace, log := l.conn, l.done, l.grace, l.log
	addr := conn.LocalAddr().String()
	l.mu.Unlock()

	err := conn.Close()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		log.Warn("receive loop did not exit within grace period", "local", addr, "grace", grace)
	}

	log.Info("statsd listener stopped", "local", addr)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing %s: %w", addr, err)
	}
	return nil
}
