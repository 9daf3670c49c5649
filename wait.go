// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// PollInterval is the delay between two attempts of the WaitFor methods.
const PollInterval = 100 * time.Millisecond

func pollLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(PollInterval), 1)
}

// waitFor calls find until it succeeds or fails with anything other than
// NoSuchElement.
func waitFor[T any](ctx context.Context, find func() (T, error)) (T, error) {
	lim := pollLimiter()
	for {
		if err := lim.Wait(ctx); err != nil {
			var zero T
			return zero, fmt.Errorf("webdriver: wait for element: %w", err)
		}
		v, err := find()
		if !IsErrorCode(err, NoSuchElement) {
			return v, err
		}
	}
}

//Wait for an element to appear on the page.
func (s *Session) WaitForElement(ctx context.Context, using FindElementStrategy, value string) (ElementHandle, error) {
	return waitFor(ctx, func() (ElementHandle, error) {
		return s.FindElement(ctx, using, value)
	})
}

//Wait for at least one element matching the locator to appear on the page.
func (s *Session) WaitForElements(ctx context.Context, using FindElementStrategy, value string) ([]ElementHandle, error) {
	return waitFor(ctx, func() ([]ElementHandle, error) {
		hs, err := s.FindElements(ctx, using, value)
		if err == nil && len(hs) == 0 {
			err = &ProtocolError{Command: CmdFindElements, Code: NoSuchElement}
		}
		return hs, err
	})
}

//Wait until the current URL differs from current.
//An empty current means the URL at the time of the call.
func (s *Session) WaitForNavigation(ctx context.Context, current string) error {
	if current == "" {
		var err error
		if current, err = s.CurrentURL(ctx); err != nil {
			return err
		}
	}
	lim := pollLimiter()
	for {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("webdriver: wait for navigation from %s: %w", current, err)
		}
		u, err := s.CurrentURL(ctx)
		if err != nil {
			return err
		}
		if u != current {
			return nil
		}
	}
}
