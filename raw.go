// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// cookiePath is visited to read the cookies of a site without loading one of
// its real pages.
const cookiePath = "/please_give_me_your_cookies"

//Issue a plain HTTP request to rawurl carrying the browser's cookies for it.
//rawurl may be relative to the current page. To read the cookies the browser
//briefly visits a path of the target site and comes back. The caller closes
//the response body.
func (s *Session) RawRequest(ctx context.Context, method, rawurl string, body io.Reader) (*http.Response, error) {
	current, err := s.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(current)
	if err != nil {
		return nil, malformed(CmdGetCurrentURL, []byte(current), "current url: %v", err)
	}
	ref, err := url.Parse(rawurl)
	if err != nil {
		return nil, &RequestError{Command: CmdNavigate, Err: err}
	}
	target := base.ResolveReference(ref)
	cookieURL := target.ResolveReference(&url.URL{Path: cookiePath})
	if err := s.Navigate(ctx, cookieURL.String()); err != nil {
		return nil, err
	}
	cookies, err := s.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Back(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	if ua := s.client.cfg.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	return s.client.httpClient.Do(req)
}
