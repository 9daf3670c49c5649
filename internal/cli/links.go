// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	webdriver "github.com/fedesog/w3cdriver"
	"github.com/spf13/cobra"
)

func newLinksCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "links <url>",
		Short: "List the distinct link targets of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, func(s *webdriver.Session) error {
				ctx := cmd.Context()
				if err := s.Navigate(ctx, args[0]); err != nil {
					return err
				}
				// the browser may have been redirected
				current, err := s.CurrentURL(ctx)
				if err != nil {
					return err
				}
				src, err := s.Source(ctx)
				if err != nil {
					return err
				}
				links, err := extractLinks(current, src)
				if err != nil {
					return err
				}
				for _, l := range links {
					fmt.Fprintln(cmd.OutOrStdout(), l)
				}
				return nil
			})
		},
	}
}

// extractLinks returns the absolute href targets of the anchors in src, in
// document order and without duplicates.
func extractLinks(base, src string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil || strings.HasPrefix(href, "#") {
			return
		}
		abs := baseURL.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links, nil
}
