package cli

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-statsd/pkg/admin"
	"github.com/getmockd/mockd-statsd/pkg/cli/internal/output"
	"github.com/getmockd/mockd-statsd/pkg/config"
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// ErrVerificationFailed is returned when a verification runs but does not pass.
var ErrVerificationFailed = errors.New("verification failed")

type verifyFlags struct {
	adminURL string
	req      admin.VerifyRequest
	value    float64
	timeout  time.Duration
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	f := &verifyFlags{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify that a running server received a metric",
		Long: `Ask a running server's admin API whether a matching metric arrived. The
command blocks for up to --timeout and exits non-zero when the verification
fails, printing what was observed instead.`,
		Example: `  # Wait for a tagged counter
  mockd-statsd verify --name requests.count --type c --tag env:test

  # Require three timer samples under api.*
  mockd-statsd verify --glob 'api.*' --type ms --mode count --count 3

  # Check that no error metric is emitted for 500ms
  mockd-statsd verify --glob 'errors.**' --mode absent --timeout 500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := resolveAdminURL(cmd, root, f.adminURL)
			if err != nil {
				return err
			}

			req := f.req
			if cmd.Flags().Changed("value") {
				v := f.value
				req.Value = &v
			}
			if f.timeout > 0 {
				req.Timeout = f.timeout.String()
			}

			res, err := newAdminClient(base).verify(cmd.Context(), req)
			if err != nil {
				return formatConnectionError(err)
			}

			w := cmd.OutOrStdout()
			if root.jsonOutput {
				if err := output.JSON(w, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(w, res.String())
			}
			if !res.Passed {
				return ErrVerificationFailed
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.adminURL, "admin-url", "", "Admin API base URL (default from config)")
	flags.StringVar(&f.req.Name, "name", "", "Exact metric name")
	flags.StringVar(&f.req.Glob, "glob", "", "Metric name glob")
	flags.StringVar(&f.req.Regexp, "regexp", "", "Metric name regular expression")
	flags.StringVar(&f.req.Type, "type", "", "Metric type (c, g, ms, s, h, d)")
	flags.Float64Var(&f.value, "value", 0, "Required value")
	flags.StringVar(&f.req.Expr, "expr", "", "Value expression, e.g. 'value > 100'")
	flags.StringSliceVar(&f.req.Tags, "tag", nil, "Required tag (repeatable)")
	flags.StringVar(&f.req.Mode, "mode", statsd.ModeAwait, "Verification mode (await, absent, count)")
	flags.IntVar(&f.req.Count, "count", 0, "Records required in count mode")
	flags.DurationVarP(&f.timeout, "timeout", "t", 0, "How long to wait (default: server default)")
	return cmd
}

// resolveAdminURL returns flagURL when set, otherwise the admin address
// from configuration.
func resolveAdminURL(cmd *cobra.Command, root *rootOptions, flagURL string) (string, error) {
	if cmd.Flags().Changed("admin-url") {
		return flagURL, nil
	}
	cfg, err := config.Load(root.configFile)
	if err != nil {
		return "", err
	}
	return "http://" + net.JoinHostPort(cfg.Admin.Host, strconv.Itoa(cfg.Admin.Port)), nil
}
