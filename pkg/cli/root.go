package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootOptions carries persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	jsonOutput bool
}

// NewRootCmd builds the command tree. Each call returns fresh commands so
// tests can execute them independently.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mockd-statsd",
		Short: "mockd-statsd is a mock StatsD server for tests",
		Long: `mockd-statsd listens for StatsD and DogStatsD datagrams over UDP, records
every metric it receives and lets tests verify what was emitted.

Run 'mockd-statsd serve --admin' to expose the recorded metrics over HTTP for
systems under test that are not written in Go.

Configuration can be provided via flags, environment variables (MOCKD_STATSD_*),
or a YAML file. By default .mockd-statsd.yaml in the working directory is used.`,
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Execute()
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output command results in JSON format")

	cmd.AddCommand(
		newServeCmd(opts),
		newSendCmd(opts),
		newVerifyCmd(opts),
		newRecordsCmd(opts),
		newVersionCmd(opts),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on error.
// This is called by main.main().
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
