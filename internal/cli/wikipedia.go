// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"

	webdriver "github.com/fedesog/w3cdriver"
	"github.com/spf13/cobra"
)

func newWikipediaCmd(o *options) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "wikipedia <article>",
		Short: "Search Wikipedia and print the resulting page source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(s *webdriver.Session) error {
				ctx := cmd.Context()
				if err := s.Navigate(ctx, site); err != nil {
					return err
				}
				form, err := s.Form(ctx, webdriver.CSSSelector, "form#search-form")
				if err != nil {
					return err
				}
				if err := form.SetByName(ctx, "search", args[0]); err != nil {
					return err
				}
				if err := form.Submit(ctx); err != nil {
					return err
				}
				src, err := s.Source(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), src)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&site, "site", "https://www.wikipedia.org", "portal URL")
	return cmd
}
