// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type ChromeDriver struct {
	//The port that ChromeDriver listens on. Default: a free port
	Port int
	//The URL path prefix to use for all incoming WebDriver REST requests. Default: ""
	BaseUrl string
	//The path to use for the ChromeDriver server log. Default: "" (no log)
	LogPath string
	// Log file to dump chromedriver stdout/stderr. If "" send to Logger. Default: ""
	LogFile string
	// Start method fails if Chromedriver doesn't start in less than StartTimeout. Default 20s.
	StartTimeout time.Duration
	// Extra command line switches.
	Args   []string
	Logger *zap.Logger

	path string
	url  string
	proc *process
}

//create a new service using chromedriver.
func NewChromeDriver(path string) *ChromeDriver {
	return &ChromeDriver{
		path:         path,
		StartTimeout: 20 * time.Second,
	}
}

func (d *ChromeDriver) Start(ctx context.Context) error {
	csferr := "chromedriver start failed: "
	if d.proc != nil {
		return errors.New(csferr + "chromedriver already running")
	}
	port, err := pickPort(d.Port)
	if err != nil {
		return errors.New(csferr + err.Error())
	}
	switches := []string{"--port=" + strconv.Itoa(port)}
	if d.LogPath != "" {
		switches = append(switches, "--log-path="+d.LogPath)
	}
	if d.BaseUrl != "" {
		switches = append(switches, "--url-base="+d.BaseUrl)
	}
	switches = append(switches, d.Args...)
	d.proc, err = startProcess(ctx, "chromedriver", d.path, switches, port, d.LogFile, d.StartTimeout, d.Logger)
	if err != nil {
		return err
	}
	d.Port = port
	d.url = fmt.Sprintf("http://127.0.0.1:%d%s", port, d.BaseUrl)
	return nil
}

func (d *ChromeDriver) Stop() error {
	if d.proc == nil {
		return errors.New("stop failed: chromedriver not running")
	}
	defer func() {
		d.proc = nil
	}()
	return d.proc.stop()
}

// URL returns the address of the running driver.
func (d *ChromeDriver) URL() string { return d.url }
