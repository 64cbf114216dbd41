package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/getmockd/mockd-statsd/pkg/logging"
	"github.com/getmockd/mockd-statsd/pkg/metrics"
)

// Port and host defaults.
const (
	DefaultPort = 8125
	RandomPort  = 0
	DefaultHost = "127.0.0.1"
)

// Verification defaults.
const (
	DefaultTimeout     = time.Second
	DefaultQuietPeriod = 200 * time.Millisecond
)

// Config configures a Server.
type Config struct {
	// Host is the bind interface.
	Host string
	// Port is the bind port; 0 picks an ephemeral port.
	Port int

	// DefaultTimeout is used by Verify when the timeout argument is <= 0.
	DefaultTimeout time.Duration
	// QuietPeriod is used by VerifyNoMetric when the period argument is <= 0.
	QuietPeriod time.Duration
	// PollInterval is the longest a waiter goes without re-checking.
	PollInterval time.Duration

	BufferSize      int
	StopGracePeriod time.Duration

	// Types restricts the accepted metric types. Empty accepts all.
	Types []MetricType
}

// DefaultConfig returns a config bound to an ephemeral port on loopback.
func DefaultConfig() Config {
	return Config{
		Host:            DefaultHost,
		Port:            RandomPort,
		DefaultTimeout:  DefaultTimeout,
		QuietPeriod:     DefaultQuietPeriod,
		PollInterval:    DefaultPollInterval,
		BufferSize:      DefaultBufferSize,
		StopGracePeriod: DefaultStopGracePeriod,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = d.QuietPeriod
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.StopGracePeriod <= 0 {
		c.StopGracePeriod = d.StopGracePeriod
	}
	return c
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the telemetry collector.
func WithMetrics(c metrics.Collector) Option {
	return func(s *Server) {
		if c != nil {
			s.metrics = c
		}
	}
}

// Stats are running totals since the server was created.
type Stats struct {
	Packets      uint64 `json:"packets"`
	Bytes        uint64 `json:"bytes"`
	Lines        uint64 `json:"lines"`
	InvalidLines uint64 `json:"invalidLines"`
	Records      int    `json:"records"`
}

// HealthStatus reports the server's lifecycle and address.
type HealthStatus struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Address string `json:"address,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// Server is a mock StatsD server. It composes a Listener, a Store and a
// Verifier. Create one per test; a stopped Server cannot be restarted.
type Server struct {
	cfg      Config
	id       string
	store    *Store
	calls    *callLog
	aggs     *aggregates
	decoder  *Decoder
	listener *Listener
	verifier *Verifier
	log      *slog.Logger
	metrics  metrics.Collector

	mu        sync.RWMutex
	addr      *net.UDPAddr
	startedAt time.Time

	packets atomic.Uint64
	bytes   atomic.Uint64
	lines   atomic.Uint64
	invalid atomic.Uint64
}

// New creates a server in StateCreated. No socket is bound until Start.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg.withDefaults(),
		id:      uuid.NewString(),
		store:   NewStore(),
		calls:   &callLog{},
		aggs:    newAggregates(),
		log:     logging.Nop(),
		metrics: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.decoder = NewDecoder(s.cfg.Types...)
	s.listener = NewListener(s.handlePacket)
	s.listener.SetBufferSize(s.cfg.BufferSize)
	s.listener.SetStopGracePeriod(s.cfg.StopGracePeriod)
	s.listener.SetMetrics(s.metrics)
	s.verifier = NewVerifier(s.store,
		WithPollInterval(s.cfg.PollInterval),
		WithVerifierMetrics(s.metrics),
	)

	s.log = logging.WithServer(s.log, s.id, s.bindAddress())
	s.listener.SetLogger(s.log)
	s.verifier.log = s.log
	return s
}

func (s *Server) bindAddress() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start binds the configured address and begins receiving. It returns the
// bound "host:port". A bind failure leaves the server in StateCreated.
func (s *Server) Start(ctx context.Context) (string, error) {
	addr, err := s.listener.Start(ctx, s.bindAddress())
	if err != nil {
		return "", err
	}

	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		_ = s.listener.Stop()
		return "", fmt.Errorf("unexpected address type %T", addr)
	}

	s.mu.Lock()
	s.addr = udp
	s.startedAt = time.Now()
	s.mu.Unlock()

	return udp.String(), nil
}

// Stop stops the listener. Records stay available for inspection. Calling
// Stop twice, or before Start, is a no-op.
func (s *Server) Stop() error {
	return s.listener.Stop()
}

// Close is Stop, for use with defer and io.Closer.
func (s *Server) Close() error {
	return s.Stop()
}

func (s *Server) handlePacket(payload []byte, from net.Addr) {
	now := time.Now()
	s.packets.Add(1)
	s.bytes.Add(uint64(len(payload)))
	s.calls.add(string(payload))

	res := s.decoder.Decode(payload)
	source := ""
	if from != nil {
		source = from.String()
	}
	for i := range res.Records {
		res.Records[i].ReceivedAt = now
		res.Records[i].Source = source
	}

	s.aggs.add(res.Records)
	s.store.append(res.Records...)

	s.lines.Add(uint64(len(res.Records)))
	if res.Invalid > 0 {
		s.invalid.Add(uint64(res.Invalid))
		s.metrics.LinesRejected(res.Invalid)
		for _, le := range res.Errors {
			s.log.Debug("skipped metric line", "line", le.Line, "error", le.Err, "from", source)
		}
	}
	for _, r := range res.Records {
		s.metrics.LinesDecoded(string(r.Type), 1)
	}
	s.log.Debug("datagram received", "bytes", len(payload), "records", len(res.Records), "from", source)
}

// ID returns the server's unique identifier.
func (s *Server) ID() string {
	return s.id
}

// State returns the lifecycle state.
func (s *Server) State() State {
	return s.listener.State()
}

// Address returns the bound "host:port", or "" before Start.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Host returns the bound IP, or "" before Start.
func (s *Server) Host() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.IP.String()
}

// Port returns the bound port, or 0 before Start.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr == nil {
		return 0
	}
	return s.addr.Port
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// Store returns the underlying record store.
func (s *Server) Store() *Store {
	return s.store
}

// Verify waits up to timeout for a record matching m. A timeout <= 0 uses
// the configured default.
func (s *Server) Verify(ctx context.Context, m *Matcher, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	if r, ok := s.notStarted(ModeAwait, m); !ok {
		return r
	}
	return s.verifier.Await(ctx, m, timeout)
}

// VerifyNoMetric checks that nothing matches m for the whole quiet period.
// A period <= 0 uses the configured quiet period.
func (s *Server) VerifyNoMetric(ctx context.Context, m *Matcher, period time.Duration) Result {
	if period <= 0 {
		period = s.cfg.QuietPeriod
	}
	if r, ok := s.notStarted(ModeAbsent, m); !ok {
		return r
	}
	return s.verifier.AwaitNone(ctx, m, period)
}

// VerifyCount waits up to timeout for at least n records matching m.
func (s *Server) VerifyCount(ctx context.Context, m *Matcher, n int, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	if r, ok := s.notStarted(ModeCount, m); !ok {
		return r
	}
	return s.verifier.AwaitCount(ctx, m, n, timeout)
}

// notStarted fails verifications on a server that was never started,
// since waiting could not observe anything.
func (s *Server) notStarted(mode string, m *Matcher) (Result, bool) {
	if s.State() != StateCreated {
		return Result{}, true
	}
	return Result{
		Mode:     mode,
		Matcher:  m.String(),
		Observed: []Record{},
		Message:  "cannot verify {" + m.String() + "}: " + ErrNotRunning.Error(),
	}, false
}

// Records returns every record received, in arrival order.
func (s *Server) Records() []Record {
	return s.store.Snapshot()
}

// Find returns the records matching m.
func (s *Server) Find(m *Matcher) []Record {
	return s.store.Find(m)
}

// Calls returns every raw datagram not yet consumed by VerifyCall.
func (s *Server) Calls() []string {
	return s.calls.list()
}

// VerifyCall consumes one occurrence of the raw datagram msg. It returns
// an error wrapping ErrCallNotFound if msg was not received.
func (s *Server) VerifyCall(msg string) error {
	return verifyCall(s.calls, msg)
}

// VerifyNoMoreCalls returns an error wrapping ErrUnexpectedCall if msg is
// still among the unconsumed calls.
func (s *Server) VerifyNoMoreCalls(msg string) error {
	return verifyNoMoreCalls(s.calls, msg)
}

// Value returns the aggregated value of the first series named name whose
// tags include tags. Counters and timers sum, gauges keep the last absolute
// value adjusted by signed deltas, histograms and distributions keep the
// last value, and sets report their smallest member.
func (s *Server) Value(name string, tags ...string) (float64, bool) {
	return s.aggs.value(name, tags)
}

// SetContents returns the distinct members of a set series.
func (s *Server) SetContents(name string, tags ...string) ([]string, bool) {
	return s.aggs.setContents(name, tags)
}

// Reset discards records, calls and aggregates.
func (s *Server) Reset() {
	s.store.Reset()
	s.calls.reset()
	s.aggs.reset()
	s.log.Debug("server reset")
}

// Stats returns running totals.
func (s *Server) Stats() Stats {
	return Stats{
		Packets:      s.packets.Load(),
		Bytes:        s.bytes.Load(),
		Lines:        s.lines.Load(),
		InvalidLines: s.invalid.Load(),
		Records:      s.store.Len(),
	}
}

// Health reports lifecycle state and uptime.
func (s *Server) Health() HealthStatus {
	h := HealthStatus{ID: s.id, Status: s.State().String(), Address: s.Address()}
	s.mu.RLock()
	started := s.startedAt
	s.mu.RUnlock()
	if s.State() == StateRunning {
		h.Uptime = time.Since(started).Round(time.Millisecond).String()
	}
	return h
}
