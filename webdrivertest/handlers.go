// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdrivertest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	elementKey       = "element-6066-11e4-a52e-4f735466cecf"
	shadowRootKey    = "shadow-6066-11e4-a52e-4f735466cecf"
	legacyElementKey = "ELEMENT"
)

type elemRef struct {
	el  *Element
	gen int
}

type session struct {
	id       string
	history  []string
	pos      int
	gen      int
	refs     map[string]elemRef
	byElem   map[*Element]string
	shadows  map[string]elemRef
	windows  []string
	window   string
	cookies  map[string]Cookie
	alert    *string
	timeouts map[string]interface{}
	frame    interface{}
	actions  []interface{}
	rect     Rect
	active   *Element
}

func newSession(id string) *session {
	w := "window-" + uuid.NewString()
	return &session{
		id:       id,
		history:  []string{"about:blank"},
		refs:     map[string]elemRef{},
		byElem:   map[*Element]string{},
		shadows:  map[string]elemRef{},
		windows:  []string{w},
		window:   w,
		cookies:  map[string]Cookie{},
		timeouts: map[string]interface{}{"script": 30000, "pageLoad": 300000, "implicit": 0},
		rect:     Rect{Width: 1280, Height: 800},
	}
}

func (sess *session) url() string { return sess.history[sess.pos] }

func (sess *session) cookieList() []Cookie {
	names := make([]string, 0, len(sess.cookies))
	for n := range sess.cookies {
		names = append(names, n)
	}
	sort.Strings(names)
	list := make([]Cookie, len(names))
	for i, n := range names {
		list[i] = sess.cookies[n]
	}
	return list
}

// load makes the history entry at pos current. Every reference issued
// before becomes stale.
func (s *Server) load(sess *session, pos int) {
	sess.pos = pos
	sess.gen++
	sess.byElem = map[*Element]string{}
	sess.active = nil
	sess.frame = nil
	if p, ok := s.pages[sess.url()]; ok {
		for _, c := range p.Cookies {
			sess.cookies[c.Name] = c
		}
		if p.Alert != "" {
			text := p.Alert
			sess.alert = &text
		}
	}
}

func (s *Server) navigate(sess *session, u string) {
	sess.history = append(sess.history[:sess.pos+1], u)
	s.load(sess, len(sess.history)-1)
}

func (s *Server) page(sess *session) *Page {
	if p, ok := s.pages[sess.url()]; ok {
		return p
	}
	return &Page{}
}

func (s *Server) ref(sess *session, el *Element) interface{} {
	ref, ok := sess.byElem[el]
	if !ok {
		ref = "element-" + uuid.NewString()
		sess.byElem[el] = ref
		sess.refs[ref] = elemRef{el, sess.gen}
	}
	if s.legacy {
		return map[string]string{legacyElementKey: ref}
	}
	return map[string]string{elementKey: ref}
}

func (s *Server) lookup(sess *session, ref string) (*Element, *Error) {
	r, ok := sess.refs[ref]
	if !ok {
		return nil, errorf(http.StatusNotFound, "no such element", "unknown reference "+ref)
	}
	if r.gen != sess.gen {
		return nil, errorf(http.StatusNotFound, "stale element reference", "element "+ref+" is not attached to the page document")
	}
	return r.el, nil
}

type sessionFunc func(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error)

// sessionHandler resolves the session and runs fn under the server lock.
func (s *Server) sessionHandler(fn sessionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{}
		if r.Method == http.MethodPost {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				s.writeError(w, errorf(http.StatusBadRequest, "invalid argument", "body: "+err.Error()))
				return
			}
		}
		id := chi.URLParam(r, "sid")
		s.mu.Lock()
		sess, ok := s.sessions[id]
		if !ok {
			s.mu.Unlock()
			s.writeError(w, errorf(http.StatusNotFound, "invalid session id", "session "+id+" does not exist"))
			return
		}
		v, werr := fn(sess, r, body)
		s.mu.Unlock()
		if werr != nil {
			s.writeError(w, werr)
			return
		}
		s.writeValue(w, id, v)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeValue(w, "", map[string]interface{}{
		"ready":   true,
		"message": "webdrivertest ready",
		"build":   map[string]string{"version": "1.0"},
		"os":      map[string]string{"name": "test"},
	})
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Capabilities struct {
			AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
		} `json:"capabilities"`
		DesiredCapabilities map[string]interface{} `json:"desiredCapabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, errorf(http.StatusBadRequest, "invalid argument", err.Error()))
		return
	}
	s.mu.Lock()
	caps := map[string]interface{}{}
	for k, v := range s.caps {
		caps[k] = v
	}
	requested := body.Capabilities.AlwaysMatch
	if s.legacy && requested == nil {
		requested = body.DesiredCapabilities
	}
	for k, v := range requested {
		caps[k] = v
	}
	id := s.nextID()
	s.sessions[id] = newSession(id)
	legacy := s.legacy
	s.mu.Unlock()
	if legacy {
		s.writeValue(w, id, caps)
		return
	}
	s.writeValue(w, "", map[string]interface{}{"sessionId": id, "capabilities": caps})
}

func (s *Server) handleDeleteSession(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	delete(s.sessions, sess.id)
	return nil, nil
}

func (s *Server) handleGetTimeouts(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	return sess.timeouts, nil
}

func (s *Server) handleSetTimeouts(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	for k, v := range body {
		switch k {
		case "script", "pageLoad", "implicit":
			sess.timeouts[k] = v
		default:
			return nil, errorf(http.StatusBadRequest, "invalid argument", "unknown timeout "+k)
		}
	}
	return nil, nil
}

func stringArg(body map[string]interface{}, name string) (string, *Error) {
	v, ok := body[name].(string)
	if !ok {
		return "", errorf(http.StatusBadRequest, "invalid argument", name+" must be a string")
	}
	return v, nil
}

func (s *Server) handleNavigate(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	u, werr := stringArg(body, "url")
	if werr != nil {
		return nil, werr
	}
	if parsed, err := url.Parse(u); err != nil || !parsed.IsAbs() {
		return nil, errorf(http.StatusBadRequest, "invalid argument", "not an absolute URL: "+u)
	}
	s.navigate(sess, u)
	return nil, nil
}

func (s *Server) handleCurrentURL(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	return sess.url(), nil
}

func (s *Server) handleBack(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	if sess.pos > 0 {
		s.load(sess, sess.pos-1)
	}
	return nil, nil
}

func (s *Server) handleForward(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	if sess.pos < len(sess.history)-1 {
		s.load(sess, sess.pos+1)
	}
	return nil, nil
}

func (s *Server) handleRefresh(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	s.load(sess, sess.pos)
	return nil, nil
}

func (s *Server) handleTitle(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	return s.page(sess).Title, nil
}

func (s *Server) handleSource(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	return s.page(sess).source(), nil
}

func (s *Server) handleWindowHandle(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	if sess.window == "" {
		return nil, errorf(http.StatusNotFound, "no such window", "current window is closed")
	}
	return sess.window, nil
}

func (s *Server) handleWindowHandles(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	return append([]string{}, sess.windows...), nil
}

func (s *Server) handleSwitchToWindow(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	h, werr := stringArg(body, "handle")
	if werr != nil {
		return nil, werr
	}
	for _, w := range sess.windows {
		if w == h {
			sess.window = h
			return nil, nil
		}
	}
	return nil, errorf(http.StatusNotFound, "no such window", h)
}

func (s *Server) handleCloseWindow(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	for i, w := range sess.windows {
		if w == sess.window {
			sess.windows = append(sess.windows[:i], sess.windows[i+1:]...)
			sess.window = ""
			return append([]string{}, sess.windows...), nil
		}
	}
	return nil, errorf(http.StatusNotFound, "no such window", "current window is closed")
}

func (s *Server) handleNewWindow(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	typ, _ := body["type"].(string)
	if typ != "window" {
		typ = "tab"
	}
	w := "window-" + uuid.NewString()
	sess.windows = append(sess.windows, w)
	return map[string]string{"handle": w, "type": typ}, nil
}

func (s *Server) handleWindowRect(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	return sess.rect, nil
}

func (s *Server) handleSetWindowRect(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	set := func(name string, dst *float64) {
		if v, ok := body[name].(float64); ok {
			*dst = v
		}
	}
	set("x", &sess.rect.X)
	set("y", &sess.rect.Y)
	set("width", &sess.rect.Width)
	set("height", &sess.rect.Height)
	return sess.rect, nil
}

func (s *Server) handleSwitchToFrame(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	id, ok := body["id"]
	if !ok {
		return nil, errorf(http.StatusBadRequest, "invalid argument", "missing id")
	}
	if m, ok := id.(map[string]interface{}); ok {
		ref, _ := m[elementKey].(string)
		if ref == "" {
			ref, _ = m[legacyElementKey].(string)
		}
		if ref != "" {
			el, werr := s.lookup(sess, ref)
			if werr != nil {
				return nil, werr
			}
			if el.Tag != "iframe" && el.Tag != "frame" {
				return nil, errorf(http.StatusNotFound, "no such frame", "element is not a frame")
			}
		}
	}
	sess.frame = id
	return nil, nil
}

func (s *Server) handleSwitchToParentFrame(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	sess.frame = nil
	return nil, nil
}

func locator(body map[string]interface{}) (string, *Error) {
	using, werr := stringArg(body, "using")
	if werr != nil {
		return "", werr
	}
	switch using {
	case "css selector", "link text", "partial link text", "tag name", "xpath":
	case "id", "name", "class name":
		return "", errorf(http.StatusBadRequest, "invalid argument", "unsupported locator strategy "+using)
	default:
		return "", errorf(http.StatusBadRequest, "invalid argument", "unknown locator strategy "+using)
	}
	value, werr := stringArg(body, "value")
	if werr != nil {
		return "", werr
	}
	return Key(using, value), nil
}

func (s *Server) findIn(sess *session, scope map[string][]*Element, body map[string]interface{}, all bool) (interface{}, *Error) {
	key, werr := locator(body)
	if werr != nil && s.legacy {
		// JSON Wire Protocol remote ends know id, name and class name
		using, _ := body["using"].(string)
		value, _ := body["value"].(string)
		key, werr = Key(using, value), nil
	}
	if werr != nil {
		return nil, werr
	}
	found := scope[key]
	if all {
		refs := make([]interface{}, len(found))
		for i, el := range found {
			refs[i] = s.ref(sess, el)
		}
		return refs, nil
	}
	if len(found) == 0 {
		return nil, errorf(http.StatusNotFound, "no such element", "no element matches "+key)
	}
	return s.ref(sess, found[0]), nil
}

func (s *Server) handleFindElement(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	return s.findIn(sess, s.page(sess).Elements, body, false)
}

func (s *Server) handleFindElements(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	return s.findIn(sess, s.page(sess).Elements, body, true)
}

func (s *Server) element(sess *session, r *http.Request) (*Element, *Error) {
	return s.lookup(sess, chi.URLParam(r, "eid"))
}

func (s *Server) handleFindElementFrom(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	return s.findIn(sess, el.Children, body, false)
}

func (s *Server) handleFindElementsFrom(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	return s.findIn(sess, el.Children, body, true)
}

func (s *Server) handleActiveElement(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	if sess.active == nil {
		return nil, errorf(http.StatusNotFound, "no such element", "no element has focus")
	}
	return s.ref(sess, sess.active), nil
}

func (s *Server) handleShadowRoot(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	if el.Shadow == nil {
		return nil, errorf(http.StatusNotFound, "no such shadow root", "element has no shadow root")
	}
	ref := "shadow-" + chi.URLParam(r, "eid")
	sess.shadows[ref] = elemRef{el, sess.gen}
	return map[string]string{shadowRootKey: ref}, nil
}

func (s *Server) shadowHost(sess *session, r *http.Request) (*Element, *Error) {
	ref := chi.URLParam(r, "rid")
	host, ok := sess.shadows[ref]
	if !ok {
		return nil, errorf(http.StatusNotFound, "no such shadow root", ref)
	}
	if host.gen != sess.gen {
		return nil, errorf(http.StatusNotFound, "detached shadow root", ref)
	}
	return host.el, nil
}

func (s *Server) handleFindElementInShadow(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	host, werr := s.shadowHost(sess, r)
	if werr != nil {
		return nil, werr
	}
	return s.findIn(sess, host.Shadow, body, false)
}

func (s *Server) handleFindElementsInShadow(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	host, werr := s.shadowHost(sess, r)
	if werr != nil {
		return nil, werr
	}
	return s.findIn(sess, host.Shadow, body, true)
}

func (s *Server) handleElementState(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/selected"):
		return el.Selected, nil
	case strings.HasSuffix(r.URL.Path, "/enabled"):
		return !el.Disabled, nil
	}
	return !el.Hidden, nil
}

func (s *Server) handleAttribute(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	if v, ok := el.attribute(chi.URLParam(r, "name")); ok {
		return v, nil
	}
	return nil, nil
}

func (s *Server) handleProperty(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	v, _ := el.property(chi.URLParam(r, "name"))
	return s.wireResult(sess, v), nil
}

func (s *Server) handleCSSValue(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	name := chi.URLParam(r, "name")
	if v, ok := el.Properties["style."+name].(string); ok {
		return v, nil
	}
	if name == "display" {
		if el.Hidden {
			return "none", nil
		}
		return "block", nil
	}
	return "", nil
}

func (s *Server) handleText(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	if el.Hidden {
		return "", nil
	}
	return el.Text, nil
}

func (s *Server) handleTagName(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	return strings.ToLower(el.Tag), nil
}

func (s *Server) handleElementRect(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	return el.Rect, nil
}

func (s *Server) interactable(sess *session, r *http.Request) (*Element, *Error) {
	el, werr := s.element(sess, r)
	if werr != nil {
		return nil, werr
	}
	if el.Hidden || el.Disabled {
		return nil, errorf(http.StatusBadRequest, "element not interactable", "element is not visible or disabled")
	}
	return el, nil
}

func (s *Server) handleClick(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.interactable(sess, r)
	if werr != nil {
		return nil, werr
	}
	s.clicks[el]++
	sess.active = el
	if href, ok := el.Attributes["href"]; ok && strings.EqualFold(el.Tag, "a") {
		base, err := url.Parse(sess.url())
		ref, rerr := url.Parse(href)
		if err == nil && rerr == nil {
			s.navigate(sess, base.ResolveReference(ref).String())
		}
	}
	if s.legacy {
		return nil, nil
	}
	// geckodriver answers {}
	return map[string]interface{}{}, nil
}

func (s *Server) handleClear(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	el, werr := s.interactable(sess, r)
	if werr != nil {
		return nil, werr
	}
	el.setProperty("value", "")
	return nil, nil
}

func (s *Server) handleSendKeys(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	el, werr := s.interactable(sess, r)
	if werr != nil {
		return nil, werr
	}
	text, werr := stringArg(body, "text")
	if werr != nil {
		return nil, werr
	}
	current, _ := el.property("value")
	prefix, _ := current.(string)
	el.setProperty("value", prefix+text)
	sess.active = el
	return nil, nil
}

func (s *Server) handleCookies(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	return sess.cookieList(), nil
}

func (s *Server) handleCookie(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	name := chi.URLParam(r, "name")
	c, ok := sess.cookies[name]
	if !ok {
		return nil, errorf(http.StatusNotFound, "no such cookie", name)
	}
	return c, nil
}

func (s *Server) handleAddCookie(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	raw, err := json.Marshal(body["cookie"])
	if err != nil {
		return nil, errorf(http.StatusBadRequest, "invalid argument", err.Error())
	}
	var c Cookie
	if err := json.Unmarshal(raw, &c); err != nil || c.Name == "" {
		return nil, errorf(http.StatusBadRequest, "invalid argument", "cookie needs a name and a value")
	}
	sess.cookies[c.Name] = c
	return nil, nil
}

func (s *Server) handleDeleteCookie(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	delete(sess.cookies, chi.URLParam(r, "name"))
	return nil, nil
}

func (s *Server) handleDeleteAllCookies(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	sess.cookies = map[string]Cookie{}
	return nil, nil
}

func (s *Server) handleActions(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	actions, ok := body["actions"].([]interface{})
	if !ok {
		return nil, errorf(http.StatusBadRequest, "invalid argument", "actions must be an array")
	}
	if _, werr := s.resolveArgs(sess, actions); werr != nil {
		return nil, werr
	}
	sess.actions = append(sess.actions, actions...)
	return nil, nil
}

func (s *Server) handleReleaseActions(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	sess.actions = nil
	return nil, nil
}

func (s *Server) handleCloseAlert(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	if sess.alert == nil {
		return nil, errorf(http.StatusNotFound, "no such alert", "no alert is open")
	}
	sess.alert = nil
	return nil, nil
}

func (s *Server) handleAlertText(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	if sess.alert == nil {
		return nil, errorf(http.StatusNotFound, "no such alert", "no alert is open")
	}
	return *sess.alert, nil
}

func (s *Server) handleSendAlertText(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	if sess.alert == nil {
		return nil, errorf(http.StatusNotFound, "no such alert", "no alert is open")
	}
	text, werr := stringArg(body, "text")
	if werr != nil {
		return nil, werr
	}
	*sess.alert = text
	return nil, nil
}

// Screenshot is the PNG image returned by the screenshot commands.
var Screenshot = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}()

func (s *Server) handleScreenshot(sess *session, r *http.Request, _ map[string]interface{}) (interface{}, *Error) {
	if chi.URLParam(r, "eid") != "" {
		if _, werr := s.element(sess, r); werr != nil {
			return nil, werr
		}
	}
	return base64.StdEncoding.EncodeToString(Screenshot), nil
}
