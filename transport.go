// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Request is a single HTTP exchange with the remote end.
type Request struct {
	Method string
	URL    string
	// Body is the JSON payload, nil for GET and DELETE.
	Body []byte
}

// Response is the raw answer of the remote end.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Transport performs HTTP exchanges. It must honour ctx cancellation and may
// pool connections; any implementation is interchangeable.
//
//go:generate mockgen -package=webdriver -destination=mock_transport_test.go github.com/fedesog/w3cdriver Transport
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// DefaultHTTPTransport returns an http.Transport tuned for talking to a local
// or remote driver.
func DefaultHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// HTTPTransport is the Transport backed by net/http.
type HTTPTransport struct {
	Client *http.Client
	// UserAgent, if set, is sent with every request.
	UserAgent string
}

// NewHTTPTransport returns a Transport using client, or a client built on
// DefaultHTTPTransport when client is nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Transport: DefaultHTTPTransport()}
	}
	return &HTTPTransport{Client: client}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	request, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		request.Header.Set("Content-Type", "application/json;charset=utf-8")
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Accept-Charset", "utf-8")
	if t.UserAgent != "" {
		request.Header.Set("User-Agent", t.UserAgent)
	}
	response, err := t.Client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	buf, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode:  response.StatusCode,
		ContentType: response.Header.Get("Content-Type"),
		Body:        buf,
	}, nil
}
