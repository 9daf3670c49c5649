// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The package implements a client of the W3C WebDriver protocol. It also
// understands remote ends that still answer in the JSON Wire Protocol.
//
// See https://www.w3.org/TR/webdriver/
//
// A Session runs one command at a time, in the order the commands reach it,
// and fails fast with ErrSessionNotActive once it is closed, either by Delete
// or because the remote end reported it invalid. Element, window, frame and
// shadow root handles belong to the session that returned them.
//
// Example:
//	chromeDriver := webdriver.NewChromeDriver("/path/to/chromedriver")
//	if err := chromeDriver.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer chromeDriver.Stop()
//	client, err := webdriver.NewClient(chromeDriver.URL())
//	if err != nil {
//		log.Fatal(err)
//	}
//	session, err := client.NewSession(ctx, webdriver.SessionRequest{
//		AlwaysMatch: webdriver.Capabilities{"browserName": "chrome"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Delete(ctx)
//	if err := session.Navigate(ctx, "http://golang.org"); err != nil {
//		log.Println(err)
//	}
//	title, err := session.Title(ctx)
//
package webdriver
