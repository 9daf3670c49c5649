// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records command outcomes. A nil *Metrics records nothing.
type Metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	sessions prometheus.Gauge
}

// NewMetrics registers the client collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webdriver",
				Subsystem: "client",
				Name:      "commands_total",
				Help:      "Total number of commands by outcome",
			},
			[]string{"command", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "webdriver",
				Subsystem: "client",
				Name:      "command_duration_seconds",
				Help:      "Command latency in seconds, retries included",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"command"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "webdriver",
				Subsystem: "client",
				Name:      "retries_total",
				Help:      "Total number of retried exchanges",
			},
			[]string{"command"},
		),
		sessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "webdriver",
				Subsystem: "client",
				Name:      "sessions_active",
				Help:      "Number of sessions in the Active state",
			},
		),
	}
}

func (m *Metrics) observe(kind CommandKind, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(string(kind), outcome(err)).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) retry(kind CommandKind) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) sessionUp() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionDown() {
	if m != nil {
		m.sessions.Dec()
	}
}

func outcome(err error) string {
	var (
		perr *ProtocolError
		terr *TransportError
		merr *MalformedResponseError
		rerr *RequestError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &perr):
		return "protocol_error"
	case errors.As(err, &terr):
		return "transport_error"
	case errors.As(err, &merr):
		return "malformed_response"
	case errors.As(err, &rerr):
		return "request_error"
	case errors.Is(err, ErrSessionNotActive), errors.Is(err, ErrInvalidHandle):
		return "rejected"
	}
	return "error"
}
