// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli implements the webdriver command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	webdriver "github.com/fedesog/w3cdriver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options holds the persistent flags.
type options struct {
	config       string
	url          string
	chromedriver string
	debug        bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "webdriver",
		Short: "Run browser tasks through a WebDriver remote end",
		Long: `webdriver talks to a running driver (--url) or starts chromedriver
(--chromedriver) and runs one task per invocation.

Settings are read from the YAML file given with --config and from the
WEBDRIVER_URL, WEBDRIVER_REQUEST_TIMEOUT and WEBDRIVER_USER_AGENT
environment variables. Flags win over both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&o.config, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&o.url, "url", "", "URL of a running remote end, e.g. http://localhost:4444")
	cmd.PersistentFlags().StringVar(&o.chromedriver, "chromedriver", "", "path of a chromedriver binary to start")
	cmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "log protocol exchanges to stderr")

	cmd.AddCommand(
		newStatusCmd(o),
		newSourceCmd(o),
		newHTMLCmd(o),
		newLinksCmd(o),
		newScreenshotCmd(o),
		newWikipediaCmd(o),
	)
	return cmd
}

// Execute runs the command line in os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// remote is a client and, when the command started one, the driver behind it.
type remote struct {
	client   *webdriver.Client
	launcher webdriver.Launcher
	// caps are requested with every session, e.g. the Firefox prefs of a
	// geckodriver launcher.
	caps webdriver.Capabilities
	log  *zap.Logger
}

// launcherCapabilities returns the capabilities a launcher wants sessions to
// request, or nil.
func launcherCapabilities(l webdriver.Launcher) webdriver.Capabilities {
	if p, ok := l.(interface{ Capabilities() webdriver.Capabilities }); ok {
		return p.Capabilities()
	}
	return nil
}

func (o *options) logger() (*zap.Logger, error) {
	if !o.debug {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// connect loads the configuration and reaches the remote end, starting a
// driver if no URL is configured.
func (o *options) connect(ctx context.Context) (*remote, error) {
	cfg, err := webdriver.LoadConfig(o.config)
	if err != nil {
		return nil, err
	}
	if o.url != "" {
		cfg.URL = o.url
	}
	if o.chromedriver != "" {
		cfg.Driver.Kind = "chrome"
		cfg.Driver.Path = o.chromedriver
	}
	log, err := o.logger()
	if err != nil {
		return nil, err
	}
	r := &remote{log: log}
	if cfg.URL == "" {
		if cfg.Driver.Path == "" {
			return nil, errors.New("no remote end: use --url or --chromedriver")
		}
		if r.launcher, err = webdriver.NewLauncher(cfg.Driver, log); err != nil {
			return nil, err
		}
		if err := r.launcher.Start(ctx); err != nil {
			return nil, err
		}
		cfg.URL = r.launcher.URL()
		r.caps = launcherCapabilities(r.launcher)
	}
	r.client, err = webdriver.NewClient(cfg.URL, webdriver.WithConfig(cfg), webdriver.WithLogger(log))
	if err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

func (r *remote) close() {
	if r.launcher != nil {
		if err := r.launcher.Stop(); err != nil {
			r.log.Warn("driver stop failed", zap.Error(err))
		}
	}
	r.log.Sync()
}

// withSession runs fn in a new session and deletes the session afterwards.
func (r *remote) withSession(ctx context.Context, fn func(*webdriver.Session) error) error {
	sess, err := r.client.NewSession(ctx, webdriver.SessionRequest{AlwaysMatch: r.caps})
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := sess.Delete(dctx); err != nil {
			r.log.Warn("delete session failed", zap.Error(err))
		}
	}()
	return fn(sess)
}

// run connects, runs fn in a session and cleans up.
func (o *options) run(cmd *cobra.Command, fn func(*webdriver.Session) error) error {
	ctx := cmd.Context()
	r, err := o.connect(ctx)
	if err != nil {
		return err
	}
	defer r.close()
	return r.withSession(ctx, fn)
}
