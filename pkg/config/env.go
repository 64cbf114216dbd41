package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvHost      = "MOCKD_STATSD_HOST"
	EnvPort      = "MOCKD_STATSD_PORT"
	EnvTimeout   = "MOCKD_STATSD_TIMEOUT"
	EnvAdminPort = "MOCKD_STATSD_ADMIN_PORT"
	EnvLogLevel  = "MOCKD_STATSD_LOG_LEVEL"
	EnvLogFormat = "MOCKD_STATSD_LOG_FORMAT"
	EnvConfig    = "MOCKD_STATSD_CONFIG"
)

// LoadEnv applies environment overrides to cfg. Only variables that are
// set are applied; a malformed number or duration is an error.
func LoadEnv(cfg *Config) error {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	if v := os.Getenv(EnvHost); v != "" {
		cfg.Server.Host = v
		cfg.Sources["server.host"] = SourceEnv
	}

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
		cfg.Sources["server.port"] = SourceEnv
	}

	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Server.DefaultTimeout = d
		cfg.Sources["server.defaultTimeout"] = SourceEnv
	}

	if v := os.Getenv(EnvAdminPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAdminPort, err)
		}
		cfg.Admin.Port = port
		cfg.Admin.Enabled = true
		cfg.Sources["admin.port"] = SourceEnv
		cfg.Sources["admin.enabled"] = SourceEnv
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
		cfg.Sources["log.level"] = SourceEnv
	}

	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = v
		cfg.Sources["log.format"] = SourceEnv
	}

	return nil
}
