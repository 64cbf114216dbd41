package config

import (
	"time"
)

// Config is the complete configuration for the mockd-statsd binary.
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Admin  AdminConfig  `yaml:"admin" json:"admin"`
	Log    LogConfig    `yaml:"log" json:"log"`

	// ConfigFile is the file the configuration was loaded from, if any.
	ConfigFile string `yaml:"-" json:"configFile,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `yaml:"-" json:"-"`
}

// ServerConfig configures the UDP listener and verification defaults.
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	DefaultTimeout  time.Duration `yaml:"defaultTimeout" json:"defaultTimeout"`
	QuietPeriod     time.Duration `yaml:"quietPeriod" json:"quietPeriod"`
	PollInterval    time.Duration `yaml:"pollInterval" json:"pollInterval"`
	BufferSize      int           `yaml:"bufferSize" json:"bufferSize"`
	StopGracePeriod time.Duration `yaml:"stopGracePeriod" json:"stopGracePeriod"`
	// Types lists accepted metric types by token or name. Empty means all.
	Types []string `yaml:"types,omitempty" json:"types,omitempty"`
}

// AdminConfig configures the optional HTTP admin API.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Value sources.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)
