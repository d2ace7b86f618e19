// Package config handles YAML configuration parsing.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"salvo/internal/collector"
	"salvo/internal/core"
	"salvo/internal/data"

	"gopkg.in/yaml.v3"
)

const (
	DefaultURL            = "http://example.com"
	DefaultConcurrency    = 10
	DefaultMaxCalls       = 100
	DefaultTimeout        = 30 * time.Second
	DefaultAddr           = ":8080"
	DefaultServerMaxCalls = 10000
)

// Config is the root configuration structure.
type Config struct {
	Target     TargetConfig          `yaml:"target"`
	Dispatch   DispatchConfig        `yaml:"dispatch"`
	Server     ServerConfig          `yaml:"server"`
	Thresholds *collector.Thresholds `yaml:"thresholds,omitempty"`

	// Dir is the directory of the loaded config file, used to resolve
	// relative data file paths. Empty when no file was loaded.
	Dir string `yaml:"-"`
}

// TargetConfig describes the endpoint every call is sent to.
// URL and header values may contain ${index} and other placeholders.
type TargetConfig struct {
	URL     string            `yaml:"url"`
	Method  string            `yaml:"method"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
	Data    *DataConfig       `yaml:"data,omitempty"`
}

// DataConfig names a CSV or JSON file whose rows parameterize calls.
// Fields of the row for a call are available as ${data.<field>}.
type DataConfig struct {
	File string    `yaml:"file"`
	Mode data.Mode `yaml:"mode"` // sequential (default) or random
}

// DispatchConfig controls how a batch is run.
type DispatchConfig struct {
	Strategy    core.Strategy `yaml:"strategy"`
	MaxCalls    int           `yaml:"max_calls"`
	Concurrency int           `yaml:"concurrency"`
	RPS         int           `yaml:"rps"`           // 0 = unlimited
	MaxInFlight int           `yaml:"max_in_flight"` // non-blocking transport connection cap, 0 = unlimited
}

// ServerConfig controls the HTTP routing layer.
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	MaxCalls int    `yaml:"max_calls"` // largest batch a single request may ask for
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			URL:     DefaultURL,
			Method:  http.MethodGet,
			Timeout: DefaultTimeout,
		},
		Dispatch: DispatchConfig{
			Strategy:    core.StrategyParallel,
			MaxCalls:    DefaultMaxCalls,
			Concurrency: DefaultConcurrency,
		},
		Server: ServerConfig{
			Addr:     DefaultAddr,
			MaxCalls: DefaultServerMaxCalls,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Target.Method = strings.ToUpper(strings.TrimSpace(c.Target.Method))
	if c.Target.Method == "" {
		c.Target.Method = http.MethodGet
	}
	if s, err := core.ParseStrategy(string(c.Dispatch.Strategy)); err == nil {
		c.Dispatch.Strategy = s
	}
}

// Validate reports every invalid field, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.Target.URL == "":
		errs = append(errs, errors.New("target.url is required"))
	case strings.HasPrefix(c.Target.URL, "${"):
		// scheme and host come from a placeholder; checked per call
	default:
		if u, err := url.Parse(c.Target.URL); err != nil {
			errs = append(errs, fmt.Errorf("target.url: %w", err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, fmt.Errorf("target.url: unsupported scheme %q", u.Scheme))
		}
	}
	if d := c.Target.Data; d != nil {
		if d.File == "" {
			errs = append(errs, errors.New("target.data.file is required"))
		}
		if _, err := data.ParseMode(string(d.Mode)); err != nil {
			errs = append(errs, fmt.Errorf("target.data.mode: %w", err))
		}
	}
	if c.Target.Timeout < 0 {
		errs = append(errs, errors.New("target.timeout must be >= 0"))
	}
	if !c.Dispatch.Strategy.Valid() {
		errs = append(errs, fmt.Errorf("dispatch.strategy: %w: %q", core.ErrUnknownStrategy, c.Dispatch.Strategy))
	}
	if c.Dispatch.MaxCalls < 1 {
		errs = append(errs, errors.New("dispatch.max_calls must be >= 1"))
	}
	if c.Dispatch.Concurrency < 1 {
		errs = append(errs, errors.New("dispatch.concurrency must be >= 1"))
	}
	if c.Dispatch.RPS < 0 {
		errs = append(errs, errors.New("dispatch.rps must be >= 0"))
	}
	if c.Dispatch.MaxInFlight < 0 {
		errs = append(errs, errors.New("dispatch.max_in_flight must be >= 0"))
	}
	if c.Server.MaxCalls < 1 {
		errs = append(errs, errors.New("server.max_calls must be >= 1"))
	}
	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("thresholds.%w", err))
	}

	return errors.Join(errs...)
}
