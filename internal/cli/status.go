// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the remote end can create sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := o.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer r.close()
			st, err := r.client.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ready: %t\n", st.Ready)
			if st.Message != "" {
				fmt.Fprintf(out, "message: %s\n", st.Message)
			}
			if st.Build.Version != "" {
				fmt.Fprintf(out, "version: %s\n", st.Build.Version)
			}
			return nil
		},
	}
}
