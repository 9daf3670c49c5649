// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"

	webdriver "github.com/fedesog/w3cdriver"
	"github.com/spf13/cobra"
)

func newHTMLCmd(o *options) *cobra.Command {
	var outer bool
	cmd := &cobra.Command{
		Use:   "html <url> [selector]",
		Short: "Print the HTML of the element matching a CSS selector",
		Long: `Loads url and prints the content of the first element matching
selector, "body" by default. With --outer the element's own tag is included.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector := "body"
			if len(args) == 2 {
				selector = args[1]
			}
			return o.run(cmd, func(s *webdriver.Session) error {
				ctx := cmd.Context()
				if err := s.Navigate(ctx, args[0]); err != nil {
					return err
				}
				el, err := s.FindElement(ctx, webdriver.CSSSelector, selector)
				if err != nil {
					return err
				}
				html, err := s.ElementHTML(ctx, el, !outer)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), html)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&outer, "outer", false, "include the element itself")
	return cmd
}
