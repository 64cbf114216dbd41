package cli

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-statsd/pkg/client"
	"github.com/getmockd/mockd-statsd/pkg/config"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

type sendFlags struct {
	addr   string
	name   string
	value  string
	typ    string
	rate   float64
	tags   []string
	prefix string
}

func newSendCmd(root *rootOptions) *cobra.Command {
	f := &sendFlags{}

	cmd := &cobra.Command{
		Use:   "send [line...]",
		Short: "Send StatsD lines to a server",
		Long: `Send StatsD lines over UDP, one datagram per line. Lines come from the
arguments, or from stdin when there are none. With --name the line is built
from --value, --type, --rate and --tag instead.`,
		Example: `  # Send raw lines
  mockd-statsd send 'requests.count:1|c|#env:test' 'latency:12|ms'

  # Build a line from flags
  mockd-statsd send --name requests.count --value 1 --type c --tag env:test

  # Pipe lines from a file
  mockd-statsd send --addr 127.0.0.1:9125 < metrics.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := f.addr
			if !cmd.Flags().Changed("addr") {
				cfg, err := config.Load(root.configFile)
				if err != nil {
					return err
				}
				addr = defaultSendAddr(cfg)
			}

			if f.name != "" {
				return f.sendMetric(cmd, args, addr)
			}

			lines, err := f.lines(cmd, args)
			if err != nil {
				return err
			}

			c, err := client.New(addr)
			if err != nil {
				return err
			}
			defer c.Close()

			for _, l := range lines {
				if err := c.Send(l); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d line(s) to %s\n", len(lines), addr)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.addr, "addr", "", "Server address (default from config, port 8125)")
	flags.StringVar(&f.name, "name", "", "Metric name to build a line from")
	flags.StringVar(&f.value, "value", "1", "Metric value (with --name)")
	flags.StringVar(&f.typ, "type", "c", "Metric type (with --name)")
	flags.Float64Var(&f.rate, "rate", 1, "Sample rate (with --name)")
	flags.StringSliceVar(&f.tags, "tag", nil, "Tag as key:value (with --name, repeatable)")
	flags.StringVar(&f.prefix, "prefix", "", "Prefix for the metric name (with --name)")
	return cmd
}

// defaultSendAddr targets the configured server, falling back to the
// standard StatsD port when the configuration uses an ephemeral one.
func defaultSendAddr(cfg *config.Config) string {
	port := cfg.Server.Port
	if port == statsd.RandomPort {
		port = statsd.DefaultPort
	}
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))
}

// sendMetric builds one line from the flags. Lines the server would skip
// are rejected before sending.
func (f *sendFlags) sendMetric(cmd *cobra.Command, args []string, addr string) error {
	if len(args) > 0 {
		return errors.New("--name cannot be combined with line arguments")
	}
	t, err := statsd.ParseType(f.typ)
	if err != nil {
		return err
	}
	if f.rate <= 0 || f.rate > 1 {
		return fmt.Errorf("%w: %v", statsd.ErrInvalidSampleRate, f.rate)
	}
	if _, err := statsd.ParseLine(f.prefix + f.name + ":" + f.value + "|" + string(t)); err != nil {
		return err
	}

	c, err := client.New(addr, client.WithPrefix(f.prefix))
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Metric(f.name, f.value, string(t), f.rate, f.tags...); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent 1 line(s) to %s\n", addr)
	return nil
}

func (f *sendFlags) lines(cmd *cobra.Command, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	var lines []string
	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		if l := strings.TrimSpace(sc.Text()); l != "" {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(lines) == 0 {
		return nil, errors.New("no lines to send")
	}
	return lines, nil
}
