// Package config loads configuration for the mock StatsD server binary.
//
// Values are resolved with the following precedence, highest first:
//
//  1. Command-line flags
//  2. Environment variables (MOCKD_STATSD_*)
//  3. The config file named by --config or MOCKD_STATSD_CONFIG, or
//     .mockd-statsd.yaml in the working directory
//  4. Defaults
//
// Config.Sources records where each value came from.
package config
