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

type GeckoDriver struct {
	// The port geckodriver listens on. Default: a free port
	Port int
	// Start method fails if geckodriver doesn't start in less than StartTimeout. Default 20s.
	StartTimeout time.Duration
	// Log file to dump geckodriver stdout/stderr. If "" send to Logger. Default: ""
	LogFile string
	// Firefox preferences sent with Capabilities. Default: see method GetDefaultPrefs
	Prefs map[string]interface{}
	// Extra command line switches.
	Args   []string
	Logger *zap.Logger

	path string
	url  string
	proc *process
}

func NewGeckoDriver(path string) *GeckoDriver {
	return &GeckoDriver{
		path:         path,
		StartTimeout: 20 * time.Second,
		Prefs:        GetDefaultPrefs(),
	}
}

func (d *GeckoDriver) Start(ctx context.Context) error {
	if d.proc != nil {
		return errors.New("geckodriver start failed: geckodriver already running")
	}
	port, err := pickPort(d.Port)
	if err != nil {
		return fmt.Errorf("geckodriver start failed: %w", err)
	}
	switches := append([]string{"--host", "127.0.0.1", "--port", strconv.Itoa(port)}, d.Args...)
	d.proc, err = startProcess(ctx, "geckodriver", d.path, switches, port, d.LogFile, d.StartTimeout, d.Logger)
	if err != nil {
		return err
	}
	d.Port = port
	d.url = fmt.Sprintf("http://127.0.0.1:%d", port)
	return nil
}

func (d *GeckoDriver) Stop() error {
	if d.proc == nil {
		return errors.New("stop failed: geckodriver not running")
	}
	defer func() {
		d.proc = nil
	}()
	return d.proc.stop()
}

func (d *GeckoDriver) URL() string { return d.url }

// Capabilities returns the always-match capabilities selecting Firefox with
// d.Prefs.
func (d *GeckoDriver) Capabilities() Capabilities {
	return Capabilities{
		"browserName":        "firefox",
		"moz:firefoxOptions": map[string]interface{}{"prefs": d.Prefs},
	}
}

// Populate a map with default firefox preferences
func GetDefaultPrefs() map[string]interface{} {
	return map[string]interface{}{
		// Disable cache
		"browser.cache.disk.enable":   false,
		"browser.cache.disk.capacity": 0,
		"browser.cache.memory.enable": true,
		//Disable "do you want to remember this password?"
		"signon.rememberSignons": false,
		//set blank homepage, no welcome page
		"browser.startup.homepage":                 "about:blank",
		"browser.startup.page":                     0,
		"browser.startup.homepage_override.mstone": "ignore",
		// Don't ask if we want to switch default browsers
		"browser.shell.checkDefaultBrowser": false,
		//enable pop-ups
		"dom.disable_open_during_load": false,
		//disable dialog for long username/password in url
		"network.http.phishy-userpass-length": 255,
		// Disable various autostuff
		"app.update.auto":                        false,
		"extensions.update.enabled":              false,
		"browser.search.update":                  false,
		"browser.safebrowsing.malware.enabled":   false,
		"browser.sessionstore.resume_from_crash": false,
		"browser.tabs.warnOnClose":               false,
		"browser.tabs.warnOnOpen":                false,
		"prompts.tab_modal.enabled":              false,
	}
}
