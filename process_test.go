// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewLauncher(t *testing.T) {
	log := zap.NewNop()

	_, err := NewLauncher(DriverConfig{Kind: "chrome"}, log)
	assert.Error(t, err)
	_, err = NewLauncher(DriverConfig{Kind: "opera", Path: "/bin/operadriver"}, log)
	assert.ErrorContains(t, err, "unknown driver kind")

	l, err := NewLauncher(DriverConfig{Path: "/bin/chromedriver", Port: 9515, Args: []string{"--verbose"}}, log)
	require.NoError(t, err)
	cd, ok := l.(*ChromeDriver)
	require.True(t, ok)
	assert.Equal(t, 9515, cd.Port)
	assert.Equal(t, []string{"--verbose"}, cd.Args)
	assert.Equal(t, 20*time.Second, cd.StartTimeout)

	l, err = NewLauncher(DriverConfig{Kind: "gecko", Path: "/bin/geckodriver", StartTimeout: time.Second}, log)
	require.NoError(t, err)
	gd, ok := l.(*GeckoDriver)
	require.True(t, ok)
	assert.Equal(t, time.Second, gd.StartTimeout)
	assert.Equal(t, "firefox", gd.Capabilities()["browserName"])
	assert.Error(t, gd.Stop(), "not running")
}

func TestPickPort(t *testing.T) {
	port, err := pickPort(4444)
	require.NoError(t, err)
	assert.Equal(t, 4444, port)

	port, err = pickPort(0)
	require.NoError(t, err)
	assert.NotZero(t, port)
}

func listen(t *testing.T) (net.Listener, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln, ln.Addr().(*net.TCPAddr).Port
}

func TestProbePort(t *testing.T) {
	ln, port := listen(t)
	require.NoError(t, probePort(context.Background(), port, time.Second))
	ln.Close()

	assert.Error(t, probePort(context.Background(), port, 150*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, probePort(ctx, port, time.Minute), context.Canceled)
}

func TestStartProcess(t *testing.T) {
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("no sleep binary")
	}
	ln, port := listen(t)
	defer ln.Close()

	p, err := startProcess(context.Background(), "sleep", sleep, []string{"30"}, port, "", time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, p.stop())
	select {
	case <-p.done:
	default:
		t.Fatal("process still running after stop")
	}

	logFile := filepath.Join(t.TempDir(), "driver.log")
	ln.Close()
	_, err = startProcess(context.Background(), "sleep", sleep, []string{"30"}, port, logFile, 200*time.Millisecond, nil)
	assert.ErrorContains(t, err, "sleep start failed")
	_, err = os.Stat(logFile)
	assert.NoError(t, err)

	_, err = startProcess(context.Background(), "missing", filepath.Join(t.TempDir(), "nope"), nil, port, "", time.Second, nil)
	assert.ErrorContains(t, err, "missing start failed")
}
