package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getmockd/mockd-statsd/pkg/client"
	"github.com/getmockd/mockd-statsd/pkg/logging"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// Option configures a MockStatsD.
type Option func(*options)

type options struct {
	cfg     statsd.Config
	logTest bool
	level   logging.Level
}

// WithConfig replaces the server configuration.
func WithConfig(cfg statsd.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithTimeout sets the default wait used by AssertReceived and Expect.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.cfg.DefaultTimeout = d }
}

// WithQuietPeriod sets the default period used by AssertNotReceived.
func WithQuietPeriod(d time.Duration) Option {
	return func(o *options) { o.cfg.QuietPeriod = d }
}

// WithTestLogging routes server logs at level and above to t.Log.
func WithTestLogging(level logging.Level) Option {
	return func(o *options) {
		o.logTest = true
		o.level = level
	}
}

// MockStatsD is a per-test mock StatsD server.
type MockStatsD struct {
	t      testing.TB
	server *statsd.Server

	mu      sync.Mutex
	started bool
	addr    string
	client  *client.Client
}

// New creates a mock server for t. It is not bound until Start.
func New(t testing.TB, opts ...Option) *MockStatsD {
	t.Helper()

	o := options{cfg: statsd.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	var srvOpts []statsd.Option
	if o.logTest {
		srvOpts = append(srvOpts, statsd.WithLogger(logging.ForTest(t, o.level)))
	}

	return &MockStatsD{
		t:      t,
		server: statsd.New(o.cfg, srvOpts...),
	}
}

// Start binds the server and returns its "host:port". The server is
// stopped automatically when the test finishes. Calling Start again
// returns the same address.
func (m *MockStatsD) Start() string {
	m.t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return m.addr
	}

	addr, err := m.server.Start(context.Background())
	if err != nil {
		m.t.Fatalf("failed to start mock statsd server: %v", err)
		return ""
	}
	m.addr = addr
	m.started = true
	m.t.Cleanup(m.Stop)
	return addr
}

// Stop closes the client, if any, and stops the server. It is safe to call
// more than once.
func (m *MockStatsD) Stop() {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()

	if c != nil {
		_ = c.Close()
	}
	_ = m.server.Stop()
}

// Addr returns the bound address, or "" before Start.
func (m *MockStatsD) Addr() string {
	return m.server.Address()
}

// Host returns the bound IP.
func (m *MockStatsD) Host() string {
	return m.server.Host()
}

// Port returns the bound port.
func (m *MockStatsD) Port() int {
	return m.server.Port()
}

// Server returns the underlying server for direct use.
func (m *MockStatsD) Server() *statsd.Server {
	return m.server
}

// Client returns a sender pointed at the server, starting it if needed.
func (m *MockStatsD) Client() *client.Client {
	m.t.Helper()
	addr := m.Start()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		c, err := client.New(addr)
		if err != nil {
			m.t.Fatalf("failed to create statsd client: %v", err)
			return nil
		}
		m.client = c
	}
	return m.client
}

// Records returns every record received so far.
func (m *MockStatsD) Records() []statsd.Record {
	return m.server.Records()
}

// Reset clears records, calls and aggregates.
func (m *MockStatsD) Reset() {
	m.server.Reset()
}
