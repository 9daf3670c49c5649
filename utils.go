// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

//head of a body for logs and error messages
func truncate(buf []byte, n int) string {
	if len(buf) > n {
		return fmt.Sprintf("%s ...%d more bytes", string(buf[0:n]), len(buf)-n)
	}
	return string(buf)
}

//probe port until get a reply, timeout is up or ctx is done
func probePort(ctx context.Context, port int, timeout time.Duration) error {
	address := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(timeout)
	var dialer net.Dialer
	for {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			return conn.Close()
		}
		if time.Now().After(deadline) {
			return errors.New("start failed: timeout expired")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
