package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// Validate checks ranges and enumerations and returns every problem found,
// joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range (0-65535)", c.Server.Port))
	}
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		errs = append(errs, fmt.Errorf("admin.port %d is out of range (0-65535)", c.Admin.Port))
	}

	durations := []struct {
		key string
		val time.Duration
	}{
		{"server.defaultTimeout", c.Server.DefaultTimeout},
		{"server.quietPeriod", c.Server.QuietPeriod},
		{"server.pollInterval", c.Server.PollInterval},
		{"server.stopGracePeriod", c.Server.StopGracePeriod},
	}
	for _, d := range durations {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.key))
		}
	}

	if c.Server.BufferSize < 512 || c.Server.BufferSize > 65535 {
		errs = append(errs, fmt.Errorf("server.bufferSize %d is out of range (512-65535)", c.Server.BufferSize))
	}

	for _, t := range c.Server.Types {
		if _, err := statsd.ParseType(t); err != nil {
			errs = append(errs, fmt.Errorf("server.types: %w", err))
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	return errors.Join(errs...)
}
