package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with pointer fields so a file can set a value
// to its zero value (admin.enabled: false) and still override the default.
type fileConfig struct {
	Server struct {
		Host            *string        `yaml:"host"`
		Port            *int           `yaml:"port"`
		DefaultTimeout  *time.Duration `yaml:"defaultTimeout"`
		QuietPeriod     *time.Duration `yaml:"quietPeriod"`
		PollInterval    *time.Duration `yaml:"pollInterval"`
		BufferSize      *int           `yaml:"bufferSize"`
		StopGracePeriod *time.Duration `yaml:"stopGracePeriod"`
		Types           []string       `yaml:"types"`
	} `yaml:"server"`
	Admin struct {
		Enabled *bool   `yaml:"enabled"`
		Host    *string `yaml:"host"`
		Port    *int    `yaml:"port"`
	} `yaml:"admin"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

// ConfigError represents a configuration file error with location info.
type ConfigError struct {
	Path    string
	Line    int
	Message string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", e.Path, e.Line, e.Message)
	}
	return e.Path + ": " + e.Message
}

// FindLocalConfig returns the first of LocalConfigFileNames present in dir,
// or "" if none exists.
func FindLocalConfig(dir string) string {
	for _, name := range LocalConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadFile applies the YAML file at path on top of cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return yamlError(path, err)
	}

	cfg.ConfigFile = path
	mergeFile(cfg, &fc)
	return nil
}

// yamlError converts a yaml.v3 error into a ConfigError, keeping the first
// reported line number.
func yamlError(path string, err error) error {
	ce := &ConfigError{Path: path, Message: err.Error()}

	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		ce.Message = te.Errors[0]
	}
	var line int
	if _, scanErr := fmt.Sscanf(ce.Message, "yaml: line %d:", &line); scanErr == nil {
		ce.Line = line
	} else if _, scanErr := fmt.Sscanf(ce.Message, "line %d:", &line); scanErr == nil {
		ce.Line = line
	}
	return ce
}

func mergeFile(cfg *Config, fc *fileConfig) {
	set := func(key string) { cfg.Sources[key] = SourceFile }
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	s := fc.Server
	if s.Host != nil {
		cfg.Server.Host = *s.Host
		set("server.host")
	}
	if s.Port != nil {
		cfg.Server.Port = *s.Port
		set("server.port")
	}
	if s.DefaultTimeout != nil {
		cfg.Server.DefaultTimeout = *s.DefaultTimeout
		set("server.defaultTimeout")
	}
	if s.QuietPeriod != nil {
		cfg.Server.QuietPeriod = *s.QuietPeriod
		set("server.quietPeriod")
	}
	if s.PollInterval != nil {
		cfg.Server.PollInterval = *s.PollInterval
		set("server.pollInterval")
	}
	if s.BufferSize != nil {
		cfg.Server.BufferSize = *s.BufferSize
		set("server.bufferSize")
	}
	if s.StopGracePeriod != nil {
		cfg.Server.StopGracePeriod = *s.StopGracePeriod
		set("server.stopGracePeriod")
	}
	if s.Types != nil {
		cfg.Server.Types = s.Types
		set("server.types")
	}

	a := fc.Admin
	if a.Enabled != nil {
		cfg.Admin.Enabled = *a.Enabled
		set("admin.enabled")
	}
	if a.Host != nil {
		cfg.Admin.Host = *a.Host
		set("admin.host")
	}
	if a.Port != nil {
		cfg.Admin.Port = *a.Port
		set("admin.port")
	}

	if fc.Log.Level != nil {
		cfg.Log.Level = *fc.Log.Level
		set("log.level")
	}
	if fc.Log.Format != nil {
		cfg.Log.Format = *fc.Log.Format
		set("log.format")
	}
}

// Load resolves defaults, the config file and the environment. path may be
// empty, in which case MOCKD_STATSD_CONFIG and then the working directory
// are consulted. Flags are applied by the caller afterwards.
func Load(path string) (*Config, error) {
	cfg := NewDefault()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		if cwd, err := os.Getwd(); err == nil {
			path = FindLocalConfig(cwd)
		}
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := LoadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
