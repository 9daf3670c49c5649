// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdrivertest

import (
	"fmt"
	"sort"
	"strings"
)

// Page is the content served for one URL.
type Page struct {
	Title string
	// Source is returned verbatim by the page source command. When empty a
	// document is built from Title.
	Source string
	// Elements maps a locator to the elements it finds, see Key.
	Elements map[string][]*Element
	// Cookies are set in the browser when the page is visited.
	Cookies []Cookie
	// Alert, when set, is opened by visiting the page.
	Alert string
}

// Element is a node of a Page.
type Element struct {
	Tag        string
	Text       string
	Attributes map[string]string
	Properties map[string]interface{}
	// Children maps a locator to the elements found from this one.
	Children map[string][]*Element
	// Shadow, when not nil, is the content of the element's shadow root.
	Shadow   map[string][]*Element
	Rect     Rect
	Hidden   bool
	Disabled bool
	Selected bool
}

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Expiry   int64  `json:"expiry,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// Key returns the Elements key of a locator. CSS selectors are their own key,
// other strategies are prefixed with the strategy name and a colon, e.g.
// "xpath://a" or "link text:Next".
func Key(using, value string) string {
	if using == "css selector" {
		return value
	}
	return using + ":" + value
}

func (p *Page) source() string {
	if p.Source != "" {
		return p.Source
	}
	return fmt.Sprintf("<html><head><title>%s</title></head><body></body></html>", p.Title)
}

func (e *Element) attribute(name string) (string, bool) {
	v, ok := e.Attributes[name]
	return v, ok
}

func (e *Element) property(name string) (interface{}, bool) {
	if v, ok := e.Properties[name]; ok {
		return v, true
	}
	switch name {
	case "innerHTML":
		return e.Text, true
	case "outerHTML":
		return e.outerHTML(), true
	case "tagName":
		return strings.ToUpper(e.Tag), true
	case "textContent", "innerText":
		return e.Text, true
	}
	if v, ok := e.Attributes[name]; ok {
		return v, true
	}
	return nil, false
}

func (e *Element) setProperty(name string, v interface{}) {
	if e.Properties == nil {
		e.Properties = map[string]interface{}{}
	}
	e.Properties[name] = v
}

func (e *Element) outerHTML() string {
	var b strings.Builder
	b.WriteString("<" + e.Tag)
	names := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(&b, " %s=%q", k, e.Attributes[k])
	}
	b.WriteString(">" + e.Text + "</" + e.Tag + ">")
	return b.String()
}
