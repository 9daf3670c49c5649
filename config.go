// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client settings. The zero value is not usable, start from
// DefaultConfig or LoadConfig.
type Config struct {
	// URL of the remote end, e.g. http://127.0.0.1:9515.
	URL string `yaml:"url"`
	// RequestTimeout bounds a single HTTP exchange.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	UserAgent      string        `yaml:"user_agent"`
	Retry          RetryConfig   `yaml:"retry"`
	// Timeouts, when set, are applied to every new session before it is
	// handed to the caller.
	Timeouts     Timeouts     `yaml:"timeouts"`
	Capabilities Capabilities `yaml:"capabilities"`
	Driver       DriverConfig `yaml:"driver"`
}

// RetryConfig controls retries of idempotent commands after transport failures.
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Multiplier      float64       `yaml:"multiplier"`
}

// DriverConfig describes a driver binary to launch.
type DriverConfig struct {
	// Kind is "chrome" or "gecko".
	Kind         string        `yaml:"kind"`
	Path         string        `yaml:"path"`
	Port         int           `yaml:"port"`
	Args         []string      `yaml:"args"`
	LogFile      string        `yaml:"log_file"`
	StartTimeout time.Duration `yaml:"start_timeout"`
}

// DefaultRetryConfig allows two retries with exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 60 * time.Second,
		Retry:          DefaultRetryConfig(),
		Driver: DriverConfig{
			Kind:         "chrome",
			StartTimeout: 20 * time.Second,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and applies the
// WEBDRIVER_URL, WEBDRIVER_REQUEST_TIMEOUT and WEBDRIVER_USER_AGENT
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("WEBDRIVER_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("WEBDRIVER_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WEBDRIVER_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("WEBDRIVER_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	return nil
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if c.RequestTimeout < 0 {
		return fmt.Errorf("config: negative request_timeout %s", c.RequestTimeout)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("config: negative retry.max_retries %d", c.Retry.MaxRetries)
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		return fmt.Errorf("config: retry.multiplier %v is below 1", c.Retry.Multiplier)
	}
	switch c.Driver.Kind {
	case "", "chrome", "gecko":
	default:
		return fmt.Errorf("config: unknown driver kind %q", c.Driver.Kind)
	}
	return nil
}
