// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"

	webdriver "github.com/fedesog/w3cdriver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newSourceCmd(o *options) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "source <url>...",
		Short: "Print the page source of each URL",
		Long: `Loads every URL in its own session and prints the sources in the
order of the arguments. At most --parallel sessions are open at once.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
			}
			ctx := cmd.Context()
			r, err := o.connect(ctx)
			if err != nil {
				return err
			}
			defer r.close()
			sources := make([]string, len(args))
			g, ctx := errgroup.WithContext(ctx)
			g.SetLimit(parallel)
			for i, u := range args {
				g.Go(func() error {
					return r.withSession(ctx, func(s *webdriver.Session) error {
						if err := s.Navigate(ctx, u); err != nil {
							return err
						}
						src, err := s.Source(ctx)
						sources[i] = src
						return err
					})
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			for _, src := range sources {
				fmt.Fprintln(cmd.OutOrStdout(), src)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "maximum number of concurrent sessions")
	return cmd
}
