package config

import (
	"github.com/getmockd/mockd-statsd/pkg/statsd"
)

// DefaultAdminPort is the default admin API port, next to StatsD's 8125.
const DefaultAdminPort = 8126

// LocalConfigFileNames are searched for in the working directory, in order.
var LocalConfigFileNames = []string{".mockd-statsd.yaml", ".mockd-statsd.yml"}

// NewDefault returns a Config populated with defaults.
func NewDefault() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            statsd.DefaultHost,
			Port:            statsd.RandomPort,
			DefaultTimeout:  statsd.DefaultTimeout,
			QuietPeriod:     statsd.DefaultQuietPeriod,
			PollInterval:    statsd.DefaultPollInterval,
			BufferSize:      statsd.DefaultBufferSize,
			StopGracePeriod: statsd.DefaultStopGracePeriod,
		},
		Admin: AdminConfig{
			Host: statsd.DefaultHost,
			Port: DefaultAdminPort,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sources: make(map[string]string),
	}

	for _, key := range []string{
		"server.host", "server.port", "server.defaultTimeout", "server.quietPeriod",
		"server.pollInterval", "server.bufferSize", "server.stopGracePeriod",
		"admin.enabled", "admin.host", "admin.port", "log.level", "log.format",
	} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}

// StatsD converts the server settings into a statsd.Config.
// Types must already be valid; see Validate.
func (c *Config) StatsD() statsd.Config {
	sc := statsd.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		DefaultTimeout:  c.Server.DefaultTimeout,
		QuietPeriod:     c.Server.QuietPeriod,
		PollInterval:    c.Server.PollInterval,
		BufferSize:      c.Server.BufferSize,
		StopGracePeriod: c.Server.StopGracePeriod,
	}
	for _, t := range c.Server.Types {
		if mt, err := statsd.ParseType(t); err == nil {
			sc.Types = append(sc.Types, mt)
		}
	}
	return sc
}
