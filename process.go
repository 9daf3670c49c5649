// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/phayes/freeport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// Launcher runs a driver binary and reports where it listens.
type Launcher interface {
	Start(ctx context.Context) error
	Stop() error
	URL() string
}

// NewLauncher builds the launcher described by cfg.
func NewLauncher(cfg DriverConfig, log *zap.Logger) (Launcher, error) {
	if cfg.Path == "" {
		return nil, errors.New("webdriver: driver path not set")
	}
	switch cfg.Kind {
	case "", "chrome":
		d := NewChromeDriver(cfg.Path)
		d.Port, d.LogFile, d.Args, d.Logger = cfg.Port, cfg.LogFile, cfg.Args, log
		if cfg.StartTimeout > 0 {
			d.StartTimeout = cfg.StartTimeout
		}
		return d, nil
	case "gecko":
		d := NewGeckoDriver(cfg.Path)
		d.Port, d.LogFile, d.Args, d.Logger = cfg.Port, cfg.LogFile, cfg.Args, log
		if cfg.StartTimeout > 0 {
			d.StartTimeout = cfg.StartTimeout
		}
		return d, nil
	}
	return nil, fmt.Errorf("webdriver: unknown driver kind %q", cfg.Kind)
}

func pickPort(port int) (int, error) {
	if port != 0 {
		return port, nil
	}
	return freeport.GetFreePort()
}

// stopGrace is how long a driver has to exit after an interrupt.
const stopGrace = 5 * time.Second

// process is a running driver binary.
type process struct {
	name   string
	cmd    *exec.Cmd
	output io.WriteCloser
	done   chan struct{}
}

// startProcess runs path and waits until port accepts connections. Output goes
// to logFile when set, else to log at debug level.
func startProcess(ctx context.Context, name, path string, args []string, port int, logFile string, timeout time.Duration, log *zap.Logger) (*process, error) {
	fail := func(err error) error { return fmt.Errorf("%s start failed: %w", name, err) }
	if log == nil {
		log = zap.NewNop()
	}
	p := &process{name: name, cmd: exec.Command(path, args...), done: make(chan struct{})}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return nil, fail(err)
	}
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return nil, fail(err)
	}
	if logFile != "" {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		f, err := os.OpenFile(logFile, flags, 0640)
		if err != nil {
			return nil, fail(err)
		}
		p.output = f
	} else {
		p.output = &zapio.Writer{Log: log.With(zap.String("driver", name)), Level: zapcore.DebugLevel}
	}
	if err := p.cmd.Start(); err != nil {
		p.output.Close()
		return nil, fail(err)
	}
	var copies sync.WaitGroup
	out := &syncWriter{w: p.output}
	pipe := func(r io.Reader) {
		defer copies.Done()
		io.Copy(out, r)
	}
	copies.Add(2)
	go pipe(stdout)
	go pipe(stderr)
	go func() {
		copies.Wait()
		p.cmd.Wait()
		p.output.Close()
		close(p.done)
	}()
	log.Debug("driver started", zap.String("driver", name), zap.Int("pid", p.cmd.Process.Pid), zap.Int("port", port))
	if err := probePort(ctx, port, timeout); err != nil {
		p.stop()
		return nil, fail(err)
	}
	return p, nil
}

// syncWriter serializes writes of the stdout and stderr copies.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *syncWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(b)
}

func (p *process) stop() error {
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		select {
		case <-p.done:
			return nil
		default:
		}
		return p.cmd.Process.Kill()
	}
	select {
	case <-p.done:
	case <-time.After(stopGrace):
		if err := p.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("%s stop failed: %w", p.name, err)
		}
		<-p.done
	}
	return nil
}
