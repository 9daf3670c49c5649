// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the whole configuration. Options that change single
// settings should come after it.
func WithConfig(cfg Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTransport sets the Transport used for protocol exchanges. It takes
// precedence over WithHTTPClient for those exchanges.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithHTTPClient sets the client used by the default transport and by
// Session.RawRequest.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.cfg.RequestTimeout = d }
}

func WithRetry(r RetryConfig) Option {
	return func(c *Client) { c.cfg.Retry = r }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.cfg.UserAgent = ua }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(instrumentationName)
		}
	}
}
