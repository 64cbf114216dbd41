package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmockd/mockd-statsd/pkg/logging"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// MaxVerifyTimeout caps the timeout a POST /verify caller may request.
const MaxVerifyTimeout = 30 * time.Second

// ErrAlreadyStarted is returned by Start on an API that is serving.
var ErrAlreadyStarted = errors.New("admin API already started")

// Option configures an API.
type Option func(*API)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithGatherer serves g on GET /metrics. Without it the route is absent.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *API) {
		a.gatherer = g
	}
}

// API is the HTTP admin surface of one statsd.Server.
type API struct {
	server   *statsd.Server
	gatherer prometheus.Gatherer
	log      *slog.Logger
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	startTime  time.Time

	// closing is closed by Shutdown to end open streams.
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates an API over srv. Call Start to serve it, or mount Handler.
func New(srv *statsd.Server, opts ...Option) *API {
	a := &API{
		server:  srv,
		log:     logging.Nop(),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}

	mux := http.NewServeMux()
	a.registerRoutes(mux)
	a.handler = a.withMiddleware(mux)
	return a
}

func (a *API) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /stats", a.handleStats)

	mux.HandleFunc("GET /records", a.handleListRecords)
	mux.HandleFunc("DELETE /records", a.handleReset)
	mux.HandleFunc("GET /calls", a.handleListCalls)
	mux.HandleFunc("POST /calls/verify", a.handleVerifyCall)
	mux.HandleFunc("GET /values", a.handleValue)

	mux.HandleFunc("POST /verify", a.handleVerify)
	mux.HandleFunc("GET /stream", a.handleStream)

	if a.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routed handler with middleware applied.
func (a *API) Handler() http.Handler {
	return a.handler
}

// Start listens on address and serves in the background. It returns the
// bound address, which differs from address when the port is 0.
func (a *API) Start(ctx context.Context, address string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.httpServer != nil {
		return "", ErrAlreadyStarted
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	a.listener = ln
	a.startTime = time.Now()
	a.httpServer = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /verify and /stream hold responses open.
	}

	srv := a.httpServer
	a.log.Info("starting admin API", "addr", ln.Addr().String())
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("admin API error", "error", err)
		}
	}()
	return ln.Addr().String(), nil
}

// Addr returns the bound address, or "" before Start.
func (a *API) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done. Open streams are closed, including those served through
// Handler without Start.
func (a *API) Shutdown(ctx context.Context) error {
	// Hijacked websocket connections are not tracked by http.Server.
	a.closeOnce.Do(func() { close(a.closing) })

	a.mu.Lock()
	srv := a.httpServer
	a.mu.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	a.log.Info("admin API stopped")
	return err
}

// Uptime returns how long the API has been serving.
func (a *API) Uptime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startTime.IsZero() {
		return 0
	}
	return time.Since(a.startTime)
}
