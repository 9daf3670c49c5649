// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"WEBDRIVER_URL", "WEBDRIVER_REQUEST_TIMEOUT", "WEBDRIVER_USER_AGENT"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, data string) string {
	path := filepath.Join(t.TempDir(), "webdriver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
url: http://localhost:4444
request_timeout: 30s
user_agent: test-agent
retry:
  max_retries: 5
  initial_interval: 10ms
timeouts:
  implicit: 2s
  page_load: 1m
capabilities:
  browserName: chrome
  acceptInsecureCerts: true
driver:
  kind: gecko
  path: /usr/bin/geckodriver
  port: 4444
  args: [--log, trace]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4444", cfg.URL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "test-agent", cfg.UserAgent)
	assert.Equal(t, RetryConfig{
		MaxRetries:      5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2,
	}, cfg.Retry, "unset fields keep their defaults")
	assert.Equal(t, Timeouts{Implicit: 2 * time.Second, PageLoad: time.Minute}, cfg.Timeouts)
	assert.Equal(t, Capabilities{"browserName": "chrome", "acceptInsecureCerts": true}, cfg.Capabilities)
	assert.Equal(t, DriverConfig{
		Kind:         "gecko",
		Path:         "/usr/bin/geckodriver",
		Port:         4444,
		Args:         []string{"--log", "trace"},
		StartTimeout: 20 * time.Second,
	}, cfg.Driver)
}

func TestLoadConfigEnv(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	t.Setenv("WEBDRIVER_URL", "http://env:9515")
	t.Setenv("WEBDRIVER_REQUEST_TIMEOUT", "5s")
	t.Setenv("WEBDRIVER_USER_AGENT", "env-agent")
	cfg, err = LoadConfig(writeConfig(t, "url: http://file:4444\nrequest_timeout: 1m\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://env:9515", cfg.URL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "env-agent", cfg.UserAgent)

	t.Setenv("WEBDRIVER_REQUEST_TIMEOUT", "soon")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "WEBDRIVER_REQUEST_TIMEOUT")
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = LoadConfig(writeConfig(t, "retry: [1, 2"))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadConfig(writeConfig(t, "driver:\n  kind: safari\n"))
	assert.ErrorContains(t, err, "unknown driver kind")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"no retries", func(c *Config) { c.Retry = RetryConfig{} }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, false},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, false},
		{"shrinking backoff", func(c *Config) { c.Retry.Multiplier = 0.5 }, false},
		{"empty driver kind", func(c *Config) { c.Driver.Kind = "" }, true},
		{"unknown driver kind", func(c *Config) { c.Driver.Kind = "edge" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
