// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fedesog/w3cdriver/webdrivertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

var (
	browser = flag.String("target", "", "also run TestBrowser against a real driver (chrome|gecko)")
	wdpath  = flag.String("wdpath", "", "path to chromedriver (chrome) or geckodriver (gecko)")
)

// newFakeSession starts a fake remote end and opens session S1 on it.
func newFakeSession(t *testing.T, opts ...Option) (*webdrivertest.Server, *Session) {
	t.Helper()
	srv := webdrivertest.NewServer()
	t.Cleanup(srv.Close)
	srv.SessionIDs("S1", "S2", "S3")
	opts = append([]Option{WithRetry(fastRetry()), WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	s, err := c.NewSession(context.Background(), SessionRequest{})
	require.NoError(t, err)
	return srv, s
}

func TestNavigation(t *testing.T) {
	srv, s := newFakeSession(t)
	srv.AddPage("http://site.test/a", &webdrivertest.Page{Title: "A"})
	srv.AddPage("http://site.test/b", &webdrivertest.Page{Title: "B"})
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, "http://site.test/a"))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", title)

	require.NoError(t, s.Navigate(ctx, "b"))
	u, err := s.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://site.test/b", u)

	require.NoError(t, s.Back(ctx))
	assert.Equal(t, "http://site.test/a", srv.CurrentURL("S1"))
	require.NoError(t, s.Forward(ctx))
	require.NoError(t, s.Refresh(ctx))
	src, err := s.Source(ctx)
	require.NoError(t, err)
	assert.Contains(t, src, "<title>B</title>")

	require.NoError(t, s.Delete(ctx))
	assert.Empty(t, srv.Sessions())
}

func TestSessionTimeouts(t *testing.T) {
	_, s := newFakeSession(t)
	ctx := context.Background()

	got, err := s.GetTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Timeouts{Script: 30 * time.Second, PageLoad: 300 * time.Second}, got)

	require.NoError(t, s.SetTimeouts(ctx, Timeouts{Implicit: 5 * time.Second}))
	got, err = s.GetTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, got.Implicit)
	assert.Equal(t, 30*time.Second, got.Script)
}

func TestWindows(t *testing.T) {
	_, s := newFakeSession(t)
	ctx := context.Background()

	first, err := s.WindowHandle(ctx)
	require.NoError(t, err)
	second, typ, err := s.NewWindow(ctx, "window")
	require.NoError(t, err)
	assert.Equal(t, "window", typ)

	all, err := s.WindowHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []WindowHandle{first, second}, all)
	w, ok := s.LookupWindow(second.Ref())
	assert.True(t, ok)
	assert.Equal(t, second, w)

	require.NoError(t, s.SwitchToWindow(ctx, second))
	current, err := s.WindowHandle(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, current)

	left, err := s.CloseWindow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []WindowHandle{first}, left)
	_, err = s.WindowHandle(ctx)
	assert.True(t, IsErrorCode(err, NoSuchWindow))
	require.NoError(t, s.SwitchToWindow(ctx, first))

	rect, err := s.WindowRect(ctx)
	require.NoError(t, err)
	assert.Equal(t, Rect{Width: 1280, Height: 800}, rect)
	rect, err = s.SetWindowRect(ctx, Rect{X: 10, Y: 20, Width: 800, Height: 600})
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 10, Y: 20, Width: 800, Height: 600}, rect)
	rect, err = s.MaximizeWindow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 800.0, rect.Width)
	_, err = s.MinimizeWindow(ctx)
	assert.NoError(t, err)
	_, err = s.FullscreenWindow(ctx)
	assert.NoError(t, err)
}

func TestFrames(t *testing.T) {
	srv, s := newFakeSession(t)
	iframe := &webdrivertest.Element{Tag: "iframe"}
	div := &webdrivertest.Element{Tag: "div"}
	srv.AddPage("http://site.test/", &webdrivertest.Page{Elements: map[string][]*webdrivertest.Element{
		"tag name:iframe": {iframe},
		"div":             {div},
	}})
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/"))

	f, err := s.FindElement(ctx, TagName, "iframe")
	require.NoError(t, err)
	d, err := s.FindElement(ctx, CSSSelector, "div")
	require.NoError(t, err)

	require.NoError(t, s.SwitchToFrame(ctx, f))
	require.NoError(t, s.SwitchToParentFrame(ctx))
	require.NoError(t, s.SwitchToFrame(ctx, s.WebElement(f)))
	require.NoError(t, s.SwitchToFrame(ctx, 0))
	require.NoError(t, s.SwitchToFrame(ctx, nil))
	assert.True(t, IsErrorCode(s.SwitchToFrame(ctx, d), NoSuchFrame))

	var rerr *RequestError
	assert.ErrorAs(t, s.SwitchToFrame(ctx, "main"), &rerr)
	assert.ErrorAs(t, s.SwitchToFrame(ctx, 1.5), &rerr)
	assert.ErrorAs(t, s.SwitchToFrame(ctx, -1), &rerr)
}

func elementsPage() (*webdrivertest.Page, map[string]*webdrivertest.Element) {
	els := map[string]*webdrivertest.Element{
		"name": {
			Tag:        "input",
			Attributes: map[string]string{"id": "name", "type": "text"},
			Properties: map[string]interface{}{"value": "x"},
			Rect:       webdrivertest.Rect{X: 1, Y: 2, Width: 3, Height: 4},
		},
		"h1":     {Tag: "H1", Text: "Hello"},
		"p1":     {Tag: "p", Text: "one"},
		"p2":     {Tag: "p", Text: "two"},
		"hidden": {Tag: "div", Text: "secret", Hidden: true},
		"off":    {Tag: "button", Disabled: true},
		"check":  {Tag: "input", Attributes: map[string]string{"type": "checkbox"}, Selected: true},
		"span":   {Tag: "span", Text: "inside"},
	}
	els["box"] = &webdrivertest.Element{Tag: "div", Children: map[string][]*webdrivertest.Element{
		"span": {els["span"]},
	}}
	page := &webdrivertest.Page{Elements: map[string][]*webdrivertest.Element{
		`[id="name"]`:    {els["name"]},
		"xpath://h1":     {els["h1"]},
		"p":              {els["p1"], els["p2"]},
		"tag name:p":     {els["p1"], els["p2"]},
		"#hidden":        {els["hidden"]},
		".off":           {els["off"]},
		`[name="agree"]`: {els["check"]},
		"#box":           {els["box"]},
	}}
	return page, els
}

func TestElements(t *testing.T) {
	srv, s := newFakeSession(t)
	page, _ := elementsPage()
	srv.AddPage("http://site.test/", page)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/"))

	name, err := s.FindElement(ctx, ID, "name")
	require.NoError(t, err)
	again, err := s.FindElement(ctx, CSSSelector, `[id="name"]`)
	require.NoError(t, err)
	assert.Equal(t, name, again, "the same element yields the same handle")
	got, ok := s.LookupElement(name.Ref())
	assert.True(t, ok)
	assert.Equal(t, name, got)

	v, ok, err := s.ElementAttribute(ctx, name, "type")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "text", v)
	_, ok, err = s.ElementAttribute(ctx, name, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	prop, err := s.ElementProperty(ctx, name, "value")
	require.NoError(t, err)
	assert.Equal(t, "x", prop)
	require.NoError(t, s.SendKeys(ctx, name, " y"))
	prop, err = s.ElementProperty(ctx, name, "value")
	require.NoError(t, err)
	assert.Equal(t, "x y", prop)
	active, err := s.ActiveElement(ctx)
	require.NoError(t, err)
	assert.Equal(t, name, active)
	require.NoError(t, s.Clear(ctx, name))
	prop, err = s.ElementProperty(ctx, name, "value")
	require.NoError(t, err)
	assert.Equal(t, "", prop)

	rect, err := s.ElementRect(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 1, Y: 2, Width: 3, Height: 4}, rect)
	require.NoError(t, s.ScrollIntoView(ctx, name))

	h1, err := s.FindElement(ctx, XPath, "//h1")
	require.NoError(t, err)
	tag, err := s.ElementTagName(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, "h1", tag)
	text, err := s.ElementText(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)

	ps, err := s.FindElements(ctx, TagName, "p")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.NotEqual(t, ps[0], ps[1])
	html, err := s.ElementHTML(ctx, ps[1], false)
	require.NoError(t, err)
	assert.Equal(t, "<p>two</p>", html)
	html, err = s.ElementHTML(ctx, ps[1], true)
	require.NoError(t, err)
	assert.Equal(t, "two", html)

	none, err := s.FindElements(ctx, CSSSelector, "table")
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = s.FindElement(ctx, CSSSelector, "table")
	assert.True(t, IsErrorCode(err, NoSuchElement))

	hidden, err := s.FindElement(ctx, CSSSelector, "#hidden")
	require.NoError(t, err)
	displayed, err := s.IsDisplayed(ctx, hidden)
	require.NoError(t, err)
	assert.False(t, displayed)
	text, err = s.ElementText(ctx, hidden)
	require.NoError(t, err)
	assert.Empty(t, text)
	display, err := s.ElementCSSValue(ctx, hidden, "display")
	require.NoError(t, err)
	assert.Equal(t, "none", display)

	off, err := s.FindElement(ctx, ClassName, "off")
	require.NoError(t, err)
	enabled, err := s.IsEnabled(ctx, off)
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.True(t, IsErrorCode(s.Click(ctx, off), ElementNotInteractable))

	check, err := s.FindElement(ctx, Name, "agree")
	require.NoError(t, err)
	selected, err := s.IsSelected(ctx, check)
	require.NoError(t, err)
	assert.True(t, selected)

	box := s.WebElement(mustFind(t, s, "#box"))
	span, err := box.FindElement(ctx, CSSSelector, "span")
	require.NoError(t, err)
	text, err = span.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inside", text)
	spans, err := box.FindElements(ctx, CSSSelector, "span")
	require.NoError(t, err)
	assert.Equal(t, []WebElement{span}, spans)

	shot, err := s.ElementScreenshot(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, webdrivertest.Screenshot, shot)
}

func mustFind(t *testing.T, s *Session, css string) ElementHandle {
	t.Helper()
	el, err := s.FindElement(context.Background(), CSSSelector, css)
	require.NoError(t, err)
	return el
}

func TestStaleElement(t *testing.T) {
	srv, s := newFakeSession(t)
	page, _ := elementsPage()
	srv.AddPage("http://site.test/", page)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/"))

	name := mustFind(t, s, `[id="name"]`)
	require.NoError(t, s.Refresh(ctx))
	err := s.Click(ctx, name)
	assert.True(t, IsErrorCode(err, StaleElementReference))
	_, err = s.ExecuteScript(ctx, "arguments[0].scrollIntoView(true)", name)
	assert.True(t, IsErrorCode(err, StaleElementReference))
	assert.True(t, s.IsActive())

	fresh := mustFind(t, s, `[id="name"]`)
	assert.NotEqual(t, name, fresh)
	assert.NoError(t, s.Click(ctx, fresh))
}

func TestShadowRoot(t *testing.T) {
	srv, s := newFakeSession(t)
	button := &webdrivertest.Element{Tag: "button", Text: "inner"}
	srv.AddPage("http://site.test/", &webdrivertest.Page{Elements: map[string][]*webdrivertest.Element{
		"my-widget": {{Tag: "my-widget", Shadow: map[string][]*webdrivertest.Element{"button": {button}}}},
		"div":       {{Tag: "div"}},
	}})
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/"))

	host := s.WebElement(mustFind(t, s, "my-widget"))
	root, err := host.ShadowRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "S1", root.SessionID())

	b, err := s.FindElementInShadowRoot(ctx, root, CSSSelector, "button")
	require.NoError(t, err)
	text, err := s.ElementText(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "inner", text)
	all, err := s.FindElementsInShadowRoot(ctx, root, CSSSelector, "button")
	require.NoError(t, err)
	assert.Equal(t, []ElementHandle{b}, all)

	_, err = s.ShadowRoot(ctx, mustFind(t, s, "div"))
	assert.True(t, IsErrorCode(err, NoSuchShadowRoot))
}

func TestExecuteScript(t *testing.T) {
	srv, s := newFakeSession(t)
	page, els := elementsPage()
	page.Title = "Scripts"
	srv.AddPage("http://site.test/", page)
	srv.HandleScript("return arguments[0]", func(call *webdrivertest.ScriptCall) (interface{}, error) {
		return call.Args[0], nil
	})
	srv.HandleScript("return [arguments[0], {n: 1}]", func(call *webdrivertest.ScriptCall) (interface{}, error) {
		return []interface{}{call.Args[0], map[string]interface{}{"n": 1}}, nil
	})
	srv.HandleScript("return document.querySelectorAll('p')", func(call *webdrivertest.ScriptCall) (interface{}, error) {
		return []*webdrivertest.Element{els["p1"], els["p2"]}, nil
	})
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/"))

	title, err := s.ExecuteScript(ctx, "return document.title")
	require.NoError(t, err)
	assert.Equal(t, "Scripts", title)

	name := mustFind(t, s, `[id="name"]`)
	v, err := s.ExecuteScript(ctx, "return arguments[0]", name)
	require.NoError(t, err)
	assert.Equal(t, name, v)

	v, err = s.ExecuteScript(ctx, "return [arguments[0], {n: 1}]", map[string]interface{}{"nested": []interface{}{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"nested": []interface{}{"a"}},
		map[string]interface{}{"n": json.Number("1")},
	}, v)

	v, err = s.ExecuteAsyncScript(ctx, "return document.querySelectorAll('p')")
	require.NoError(t, err)
	list, ok := v.([]interface{})
	require.True(t, ok)
	require.Len(t, list, 2)
	p1, ok := list[0].(ElementHandle)
	require.True(t, ok)
	text, err := s.ElementText(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, "one", text)

	raw, err := s.ExecuteScriptRaw(ctx, "return window.navigator.userAgent")
	require.NoError(t, err)
	assert.JSONEq(t, `"`+webdrivertest.UserAgent+`"`, string(raw))

	_, err = s.ExecuteScript(ctx, "return undefinedFunction()")
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, JavaScriptError, perr.Code)
}

func TestCookies(t *testing.T) {
	srv, s := newFakeSession(t)
	srv.AddPage("http://site.test/", &webdrivertest.Page{Cookies: []webdrivertest.Cookie{{Name: "visited", Value: "yes"}}})
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, "http://site.test/"))
	require.NoError(t, s.AddCookie(ctx, Cookie{Name: "a", Value: "1", Path: "/", HTTPOnly: true}))
	cookies, err := s.Cookies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Cookie{
		{Name: "a", Value: "1", Path: "/", HTTPOnly: true},
		{Name: "visited", Value: "yes"},
	}, cookies)

	c, err := s.Cookie(ctx, "visited")
	require.NoError(t, err)
	assert.Equal(t, "yes", c.Value)
	_, err = s.Cookie(ctx, "nope")
	assert.True(t, IsErrorCode(err, NoSuchCookie))

	require.NoError(t, s.DeleteCookie(ctx, "a"))
	assert.Len(t, srv.Cookies("S1"), 1)
	require.NoError(t, s.DeleteAllCookies(ctx))
	cookies, err = s.Cookies(ctx)
	require.NoError(t, err)
	assert.Empty(t, cookies)

	assert.True(t, IsErrorCode(s.AddCookie(ctx, Cookie{Value: "anonymous"}), InvalidArgument))
}

func TestAlerts(t *testing.T) {
	srv, s := newFakeSession(t)
	srv.AddPage("http://site.test/prompt", &webdrivertest.Page{Alert: "What is your name?"})
	ctx := context.Background()

	_, err := s.AlertText(ctx)
	assert.True(t, IsErrorCode(err, NoSuchAlert))

	require.NoError(t, s.Navigate(ctx, "http://site.test/prompt"))
	text, err := s.AlertText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "What is your name?", text)
	require.NoError(t, s.SendAlertText(ctx, "gopher"))
	text, err = s.AlertText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "gopher", text)
	require.NoError(t, s.AcceptAlert(ctx))
	assert.True(t, IsErrorCode(s.DismissAlert(ctx), NoSuchAlert))

	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.DismissAlert(ctx))
}

func TestActions(t *testing.T) {
	srv, s := newFakeSession(t)
	page, _ := elementsPage()
	srv.AddPage("http://site.test/", page)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/"))
	name := mustFind(t, s, `[id="name"]`)

	seq := []ActionSequence{{
		Type:       "pointer",
		ID:         "mouse",
		Parameters: map[string]interface{}{"pointerType": "mouse"},
		Actions: []Action{
			{"type": "pointerMove", "origin": name, "x": 0, "y": 0},
			{"type": "pointerDown", "button": 0},
			{"type": "pointerUp", "button": 0},
		},
	}}
	require.NoError(t, s.PerformActions(ctx, seq))
	require.NoError(t, s.ReleaseActions(ctx))

	require.NoError(t, s.Refresh(ctx))
	assert.True(t, IsErrorCode(s.PerformActions(ctx, seq), StaleElementReference))
}

func TestScreenshot(t *testing.T) {
	_, s := newFakeSession(t)
	shot, err := s.Screenshot(context.Background())
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(shot))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestForm(t *testing.T) {
	srv, s := newFakeSession(t)
	q := &webdrivertest.Element{Tag: "input", Attributes: map[string]string{"name": "q"}}
	submit := &webdrivertest.Element{Tag: "button", Attributes: map[string]string{"type": "submit", "value": "Go"}}
	form := &webdrivertest.Element{Tag: "form", Children: map[string][]*webdrivertest.Element{
		`input[name="q"]`:                        {q},
		"input[type=submit],button[type=submit]": {submit},
		`input[type=submit][value="Go" i],button[type=submit][value="Go" i]`: {submit},
	}}
	srv.AddPage("http://site.test/search", &webdrivertest.Page{Elements: map[string][]*webdrivertest.Element{
		"tag name:form": {form},
	}})
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/search"))

	f, err := s.Form(ctx, TagName, "form")
	require.NoError(t, err)
	require.NoError(t, f.SetByName(ctx, "q", "gopher"))
	assert.Equal(t, "gopher", srv.Property(q, "value"))
	assert.True(t, IsErrorCode(f.SetByName(ctx, "missing", "x"), NoSuchElement))

	require.NoError(t, f.Submit(ctx))
	require.NoError(t, f.SubmitUsing(ctx, "Go"))
	assert.Equal(t, 2, srv.Clicks(submit))
	assert.True(t, IsErrorCode(f.SubmitUsing(ctx, "Stop"), NoSuchElement))

	require.NoError(t, f.SubmitDirect(ctx))
	assert.Equal(t, 1, srv.Property(form, "submitted"))
	require.NoError(t, f.SubmitSneaky(ctx, "token", "t0k3n"))
	assert.Equal(t, 2, srv.Property(form, "submitted"))
	hidden, err := s.FindElementFrom(ctx, f.ElementHandle, CSSSelector, `input[name="token"]`)
	require.NoError(t, err)
	v, err := s.ElementProperty(ctx, hidden, "value")
	require.NoError(t, err)
	assert.Equal(t, "t0k3n", v)
}

func TestFollow(t *testing.T) {
	srv, s := newFakeSession(t)
	srv.AddPage("http://site.test/dir/", &webdrivertest.Page{Elements: map[string][]*webdrivertest.Element{
		"link text:Next": {{Tag: "a", Attributes: map[string]string{"href": "next"}}},
		"h1":             {{Tag: "h1"}},
	}})
	srv.AddPage("http://site.test/dir/next", &webdrivertest.Page{Title: "Next"})
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/dir/"))

	assert.ErrorIs(t, s.Follow(ctx, mustFind(t, s, "h1")), ErrNotALink)

	link, err := s.FindElement(ctx, LinkText, "Next")
	require.NoError(t, err)
	require.NoError(t, s.WebElement(link).Follow(ctx))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Next", title)

	require.NoError(t, s.Back(ctx))
	link, err = s.FindElement(ctx, LinkText, "Next")
	require.NoError(t, err)
	require.NoError(t, s.Click(ctx, link))
	assert.Equal(t, "http://site.test/dir/next", srv.CurrentURL("S1"))
}

func TestWaitForElement(t *testing.T) {
	srv, s := newFakeSession(t)
	page, _ := elementsPage()
	srv.AddPage("http://site.test/", page)
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, "http://site.test/"))

	srv.Inject(webdrivertest.Fault{Method: "POST", Path: "/element", Status: 404, Code: "no such element", Times: 2})
	el, err := s.WaitForElement(ctx, CSSSelector, "#hidden")
	require.NoError(t, err)
	assert.False(t, el.IsZero())
	assert.Equal(t, 3, srv.RequestCount("POST", "/session/S1/element"))

	els, err := s.WaitForElements(ctx, TagName, "p")
	require.NoError(t, err)
	assert.Len(t, els, 2)

	box := s.WebElement(mustFind(t, s, "#box"))
	_, err = box.WaitForElement(ctx, CSSSelector, "span")
	require.NoError(t, err)

	tctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	_, err = s.WaitForElement(tctx, CSSSelector, "#never")
	assert.Error(t, err)

	// errors other than a missing element end the wait
	srv.Inject(webdrivertest.Fault{Method: "POST", Path: "/element", Status: 400, Code: "invalid selector"})
	_, err = s.WaitForElement(ctx, CSSSelector, "#hidden")
	assert.True(t, IsErrorCode(err, InvalidSelector))
}

func TestWaitForNavigation(t *testing.T) {
	_, s := newFakeSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Navigate(ctx, "http://site.test/a"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.WaitForNavigation(gctx, "http://site.test/a") })
	g.Go(func() error {
		time.Sleep(150 * time.Millisecond)
		return s.Navigate(gctx, "http://site.test/b")
	})
	require.NoError(t, g.Wait())

	tctx, tcancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer tcancel()
	assert.Error(t, s.WaitForNavigation(tctx, ""))
}

func TestRawRequest(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, err := r.Cookie("sid")
		if err != nil {
			http.Error(w, "no cookie", http.StatusForbidden)
			return
		}
		fmt.Fprintf(w, "%s %s %s", r.URL.Path, sid.Value, r.UserAgent())
	}))
	defer site.Close()

	srv, s := newFakeSession(t, WithUserAgent("raw-agent"))
	srv.AddPage(site.URL+"/please_give_me_your_cookies", &webdrivertest.Page{
		Cookies: []webdrivertest.Cookie{{Name: "sid", Value: "secret"}},
	})
	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, site.URL+"/app/page"))

	resp, err := s.RawRequest(ctx, http.MethodGet, "data", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/app/data secret raw-agent", string(body))

	u, err := s.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, site.URL+"/app/page", u, "the browser returns to the page")
}

func TestInvalidSession(t *testing.T) {
	srv, s := newFakeSession(t)
	ctx := context.Background()

	srv.ExpireSession("S1")
	_, err := s.Title(ctx)
	assert.True(t, IsErrorCode(err, InvalidSessionID))
	assert.Equal(t, StateClosed, s.State())

	n := len(srv.Requests())
	_, err = s.Title(ctx)
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.ErrorIs(t, s.Delete(ctx), ErrSessionNotActive)
	assert.Len(t, srv.Requests(), n, "a closed session sends nothing")
}

func TestSetupFailure(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.SessionIDs("S1")
	srv.Inject(webdrivertest.Fault{Method: "POST", Path: "/timeouts", Status: 400, Code: "invalid argument", Message: "bad timeouts"})

	cfg := DefaultConfig()
	cfg.Timeouts = Timeouts{Implicit: time.Second}
	c, err := NewClient(srv.URL, WithConfig(cfg))
	require.NoError(t, err)
	_, err = c.NewSession(context.Background(), SessionRequest{})
	assert.True(t, IsErrorCode(err, InvalidArgument))
	assert.Equal(t, 1, srv.RequestCount("DELETE", "/session/S1"))
	assert.Empty(t, srv.Sessions())
}

func TestConcurrentSessions(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.AddPage("http://site.test/", &webdrivertest.Page{Title: "shared"})
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			s, err := c.NewSession(ctx, SessionRequest{})
			if err != nil {
				return err
			}
			if err := s.Navigate(ctx, "http://site.test/"); err != nil {
				return err
			}
			var inner errgroup.Group
			for j := 0; j < 8; j++ {
				inner.Go(func() error {
					title, err := s.Title(ctx)
					if err == nil && title != "shared" {
						err = fmt.Errorf("title %q", title)
					}
					return err
				})
			}
			return errors.Join(inner.Wait(), s.Delete(ctx))
		})
	}
	require.NoError(t, g.Wait())
	assert.Empty(t, srv.Sessions())
	assert.Equal(t, 32, srv.RequestCount("GET", "/title"))
}

func TestLegacyRemoteEnd(t *testing.T) {
	srv := webdrivertest.NewServer()
	defer srv.Close()
	srv.SetLegacy(true)
	srv.SessionIDs("L1")
	q := &webdrivertest.Element{Tag: "input"}
	srv.AddPage("http://site.test/", &webdrivertest.Page{Title: "legacy", Elements: map[string][]*webdrivertest.Element{
		"id:q": {q},
	}})
	srv.HandleScript("return arguments[0]", func(call *webdrivertest.ScriptCall) (interface{}, error) {
		return call.Args[0], nil
	})

	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()
	s, err := c.NewSession(ctx, SessionRequest{AlwaysMatch: Capabilities{"browserName": "firefox"}})
	require.NoError(t, err)
	assert.True(t, s.Legacy())
	assert.Equal(t, "L1", s.ID)
	assert.Equal(t, "firefox", s.Capabilities["browserName"])

	require.NoError(t, s.Navigate(ctx, "http://site.test/"))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legacy", title)

	el, err := s.FindElement(ctx, ID, "q")
	require.NoError(t, err)
	require.NoError(t, s.SendKeys(ctx, el, "abc"))
	assert.Equal(t, "abc", srv.Property(q, "value"))
	require.NoError(t, s.Click(ctx, el))
	v, err := s.ExecuteScript(ctx, "return arguments[0]", el)
	require.NoError(t, err)
	assert.Equal(t, el, v)

	w, err := s.WindowHandle(ctx)
	require.NoError(t, err)
	handles, err := s.WindowHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []WindowHandle{w}, handles)

	_, err = s.FindElement(ctx, ID, "missing")
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, NoSuchElement, perr.Code)
	assert.Equal(t, 7, perr.LegacyStatus)

	require.NoError(t, s.Delete(ctx))
	assert.Empty(t, srv.Sessions())
}

const simplePage = `<!DOCTYPE html><html><head><meta http-equiv="Content-Type" content="text/html; charset=utf-8"><title>webdriver simple</title></head><body><div id="foo">Simple page</div></body></html>`

// TestBrowser drives a real browser, e.g.
//
//	go test -run TestBrowser -target=chrome -wdpath=/path/to/chromedriver
func TestBrowser(t *testing.T) {
	if *browser == "" {
		t.Skip("no -target driver given")
	}
	log := zaptest.NewLogger(t)
	l, err := NewLauncher(DriverConfig{Kind: *browser, Path: *wdpath}, log)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, l.Start(ctx))
	defer l.Stop()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, simplePage)
	}))
	defer site.Close()

	c, err := NewClient(l.URL(), WithLogger(log))
	require.NoError(t, err)
	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Ready)

	var req SessionRequest
	if gd, ok := l.(*GeckoDriver); ok {
		req.AlwaysMatch = gd.Capabilities()
	}
	s, err := c.NewSession(ctx, req)
	require.NoError(t, err)
	defer s.Delete(ctx)

	require.NoError(t, s.Navigate(ctx, site.URL+"/simple"))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "webdriver simple", title)
	text, err := s.WebElement(mustFind(t, s, "#foo")).Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Simple page", text)
	shot, err := s.Screenshot(ctx)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(shot))
	assert.NoError(t, err)
}
