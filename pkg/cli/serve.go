package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/mockd-statsd/pkg/admin"
	"github.com/getmockd/mockd-statsd/pkg/config"
	"github.com/getmockd/mockd-statsd/pkg/logging"
	"github.com/getmockd/mockd-statsd/pkg/metrics"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// shutdownTimeout is the maximum time to wait for graceful shutdown.
const shutdownTimeout = 5 * time.Second

// serveReady, when set, is called once the listeners are bound. Tests use
// it to learn the ephemeral addresses.
var serveReady func(statsdAddr, adminAddr string)

// serveFlags holds the serve command's flag values. They only override the
// loaded configuration when set explicitly.
type serveFlags struct {
	host        string
	port        int
	timeout     time.Duration
	quietPeriod time.Duration
	types       []string
	admin       bool
	adminHost   string
	adminPort   int
	logLevel    string
	logFormat   string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a mock StatsD server in the foreground",
		Long: `Run a mock StatsD server until interrupted. Received metrics are kept in
memory and, with --admin, exposed through the HTTP admin API.`,
		Example: `  # Listen on the standard StatsD port
  mockd-statsd serve --port 8125

  # Expose the admin API and only accept counters and gauges
  mockd-statsd serve --admin --types c,g

  # Use a config file with debug logging
  mockd-statsd serve --config ci.yaml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configFile)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.host, "host", statsd.DefaultHost, "UDP bind host")
	flags.IntVarP(&f.port, "port", "p", statsd.DefaultPort, "UDP port (0 = ephemeral)")
	flags.DurationVarP(&f.timeout, "timeout", "t", statsd.DefaultTimeout, "Default verification timeout")
	flags.DurationVar(&f.quietPeriod, "quiet-period", statsd.DefaultQuietPeriod, "Default quiet period for absence checks")
	flags.StringSliceVar(&f.types, "types", nil, "Accepted metric types (c,g,ms,s,h,d); default all")
	flags.BoolVar(&f.admin, "admin", false, "Enable the HTTP admin API")
	flags.StringVar(&f.adminHost, "admin-host", statsd.DefaultHost, "Admin API bind host")
	flags.IntVarP(&f.adminPort, "admin-port", "a", config.DefaultAdminPort, "Admin API port (implies --admin)")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&f.logFormat, "log-format", "text", "Log format (text, json)")
	return cmd
}

// apply copies explicitly set flags onto cfg.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	set := func(key string) { cfg.Sources[key] = config.SourceFlag }

	if changed("host") {
		cfg.Server.Host = f.host
		set("server.host")
	}
	if changed("port") {
		cfg.Server.Port = f.port
		set("server.port")
	}
	if changed("timeout") {
		cfg.Server.DefaultTimeout = f.timeout
		set("server.defaultTimeout")
	}
	if changed("quiet-period") {
		cfg.Server.QuietPeriod = f.quietPeriod
		set("server.quietPeriod")
	}
	if changed("types") {
		cfg.Server.Types = f.types
		set("server.types")
	}
	if changed("admin") {
		cfg.Admin.Enabled = f.admin
		set("admin.enabled")
	}
	if changed("admin-host") {
		cfg.Admin.Host = f.adminHost
		set("admin.host")
	}
	if changed("admin-port") {
		cfg.Admin.Port = f.adminPort
		cfg.Admin.Enabled = true
		set("admin.port")
		set("admin.enabled")
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
		set("log.level")
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
		set("log.format")
	}
}

// runServe starts the server and, if enabled, the admin API, then blocks
// until ctx is cancelled or SIGINT/SIGTERM arrives.
func runServe(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logCfg := logging.Parse(cfg.Log.Level, cfg.Log.Format)
	logCfg.Output = stderr
	log := logging.New(logCfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(reg)

	srv := statsd.New(cfg.StatsD(), statsd.WithLogger(log), statsd.WithMetrics(collector))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr, err := srv.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "StatsD listening on udp://%s\n", addr)

	var api *admin.API
	var adminAddr string
	if cfg.Admin.Enabled {
		api = admin.New(srv, admin.WithLogger(log), admin.WithGatherer(reg))
		adminAddr, err = api.Start(ctx, net.JoinHostPort(cfg.Admin.Host, strconv.Itoa(cfg.Admin.Port)))
		if err != nil {
			_ = srv.Stop()
			return err
		}
		fmt.Fprintf(stdout, "Admin API listening on http://%s\n", adminAddr)
	}

	if serveReady != nil {
		serveReady(addr, adminAddr)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		if api == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return api.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})

	err = g.Wait()
	logShutdown(log, srv.Stats(), err)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func logShutdown(log *slog.Logger, st statsd.Stats, err error) {
	args := []any{"packets", st.Packets, "records", st.Records, "invalid_lines", st.InvalidLines}
	if err != nil {
		log.Warn("shutdown finished with error", append(args, "error", err)...)
		return
	}
	log.Info("shutdown complete", args...)
}
