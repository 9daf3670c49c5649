// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"errors"
	"io"
	"os"

	webdriver "github.com/fedesog/w3cdriver"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newScreenshotCmd(o *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "screenshot <url>",
		Short: "Save a PNG screenshot of a page",
		Long: `Loads url and writes a PNG screenshot of the viewport to --output, or
to stdout when stdout is not a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if output == "" && isTerminal(out) {
				return errors.New("refusing to write a PNG image to a terminal, use --output")
			}
			return o.run(cmd, func(s *webdriver.Session) error {
				ctx := cmd.Context()
				if err := s.Navigate(ctx, args[0]); err != nil {
					return err
				}
				png, err := s.Screenshot(ctx)
				if err != nil {
					return err
				}
				if output != "" {
					return os.WriteFile(output, png, 0644)
				}
				_, err = out.Write(png)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
