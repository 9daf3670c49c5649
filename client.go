// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fedesog/w3cdriver"

// Client talks to one remote end. It is safe for concurrent use and owns no
// session state; sessions it creates are independent of each other.
type Client struct {
	baseURL    string
	transport  Transport
	httpClient *http.Client
	cfg        Config
	log        *zap.Logger
	metrics    *Metrics
	tracer     trace.Tracer
}

// NewClient returns a client for the remote end at baseURL. An empty baseURL
// falls back to the configured URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		cfg: DefaultConfig(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	if baseURL == "" {
		baseURL = c.cfg.URL
	}
	if baseURL == "" {
		return nil, errors.New("webdriver: no remote end URL")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c.baseURL = strings.TrimRight(baseURL, "/")
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: DefaultHTTPTransport()}
	}
	if c.transport == nil {
		t := NewHTTPTransport(c.httpClient)
		t.UserAgent = c.cfg.UserAgent
		c.transport = t
	}
	return c, nil
}

// URL returns the base URL of the remote end.
func (c *Client) URL() string { return c.baseURL }

func (c *Client) Config() Config { return c.cfg }

//Query the server's status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	cmd, err := encodeCommand(CmdStatus, target{}, nil)
	if err != nil {
		return nil, err
	}
	r, err := c.execute(ctx, cmd, c.log)
	if err != nil {
		return nil, err
	}
	status, err := decodeValue[Status](CmdStatus, r.value)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// SessionRequest holds the capabilities asked for a new session.
type SessionRequest struct {
	// AlwaysMatch is merged over the configured capabilities.
	AlwaysMatch Capabilities
	FirstMatch  []Capabilities
}

//Create a new session.
//The session is Active when returned. Configured timeouts are applied before
//that; if this fails the session is deleted and the error returned.
func (c *Client) NewSession(ctx context.Context, req SessionRequest) (*Session, error) {
	always := Capabilities{}
	for k, v := range c.cfg.Capabilities {
		always[k] = v
	}
	for k, v := range req.AlwaysMatch {
		always[k] = v
	}
	caps := params{"alwaysMatch": always}
	if len(req.FirstMatch) > 0 {
		caps["firstMatch"] = req.FirstMatch
	}
	body := params{
		"capabilities":        caps,
		"desiredCapabilities": always,
	}
	cmd, err := encodeCommand(CmdNewSession, target{}, body)
	if err != nil {
		return nil, err
	}
	r, err := c.execute(ctx, cmd, c.log)
	if err != nil {
		return nil, err
	}
	var created struct {
		SessionID    string       `json:"sessionId"`
		Capabilities Capabilities `json:"capabilities"`
	}
	if err := json.Unmarshal(r.value, &created); err != nil {
		return nil, &MalformedResponseError{Command: CmdNewSession, Payload: r.value, Err: err}
	}
	legacy := false
	if created.SessionID == "" && r.sessionID != "" {
		// JSON Wire Protocol: id at the top level, capabilities as value
		legacy = true
		created.SessionID = r.sessionID
		if err := json.Unmarshal(r.value, &created.Capabilities); err != nil {
			return nil, &MalformedResponseError{Command: CmdNewSession, Payload: r.value, Err: err}
		}
	}
	if created.SessionID == "" {
		return nil, malformed(CmdNewSession, r.value, "missing session id")
	}
	s := newSession(c, created.SessionID, created.Capabilities, legacy)
	if err := s.setup(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// execute performs cmd, retrying idempotent commands after transient
// transport failures.
func (c *Client) execute(ctx context.Context, cmd *Command, log *zap.Logger) (*reply, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "webdriver."+string(cmd.Kind),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("webdriver.command", string(cmd.Kind)),
			attribute.String("http.request.method", cmd.Method),
			attribute.String("url.path", cmd.Path),
		))
	defer span.End()

	attempt := 0
	op := func() (*reply, error) {
		attempt++
		if attempt > 1 {
			c.metrics.retry(cmd.Kind)
		}
		r, err := c.roundTrip(ctx, cmd, log)
		if err == nil {
			return r, nil
		}
		var terr *TransportError
		if cmd.Idempotent && errors.As(err, &terr) && terr.transient() && ctx.Err() == nil {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("retrying command",
			zap.String("command", string(cmd.Kind)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	r, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.Retry.MaxRetries+1)),
		backoff.WithNotify(notify))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		err = contextFailure(cmd, err)
	}
	c.metrics.observe(cmd.Kind, err, time.Since(start))
	span.SetAttributes(attribute.Int("webdriver.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return r, nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if c.cfg.Retry.InitialInterval > 0 {
		b.InitialInterval = c.cfg.Retry.InitialInterval
	}
	if c.cfg.Retry.MaxInterval > 0 {
		b.MaxInterval = c.cfg.Retry.MaxInterval
	}
	if c.cfg.Retry.Multiplier > 0 {
		b.Multiplier = c.cfg.Retry.Multiplier
	}
	return b
}

// roundTrip is a single exchange bounded by the request timeout.
func (c *Client) roundTrip(ctx context.Context, cmd *Command, log *zap.Logger) (*reply, error) {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}
	url := c.baseURL + cmd.Path
	log.Debug(">> "+cmd.Method+" "+url, zap.ByteString("body", cmd.Body))
	resp, err := c.transport.RoundTrip(ctx, &Request{Method: cmd.Method, URL: url, Body: cmd.Body})
	if err != nil {
		terr := &TransportError{Kind: TransportConnection, Command: cmd.Kind, Method: cmd.Method, URL: url, Err: err}
		var nerr net.Error
		switch {
		case errors.Is(err, context.Canceled):
			terr.Kind = TransportCanceled
		case errors.Is(err, context.DeadlineExceeded), ctx.Err() != nil:
			terr.Kind = TransportTimeout
		case errors.As(err, &nerr) && nerr.Timeout():
			terr.Kind = TransportTimeout
		}
		log.Debug("<< transport failure", zap.Error(err))
		return nil, terr
	}
	log.Debug("<< "+http.StatusText(resp.StatusCode), zap.Int("status", resp.StatusCode), zap.String("body", truncate(resp.Body, 1024)))
	r, err := decodeReply(cmd.Kind, resp)
	var terr *TransportError
	if errors.As(err, &terr) {
		terr.Method, terr.URL = cmd.Method, url
	}
	return r, err
}

// contextFailure reports a bare context error as a transport failure.
func contextFailure(cmd *Command, err error) error {
	var terr *TransportError
	if errors.As(err, &terr) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Kind: TransportCanceled, Command: cmd.Kind, Method: cmd.Method, URL: cmd.Path, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: TransportTimeout, Command: cmd.Kind, Method: cmd.Method, URL: cmd.Path, Err: err}
	}
	return err
}
