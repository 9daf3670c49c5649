// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package webdrivertest provides an in-memory WebDriver remote end for tests.
//
// The server keeps a map of pages keyed by URL. Navigating a session to a URL
// loads the page registered for it, or an empty page. Element references are
// stable while a page stays loaded and become stale after any navigation.
package webdrivertest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Request is one exchange received by the server.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Time   time.Time
}

// Fault is an injected failure. It matches requests whose method equals
// Method and whose path ends with Path; empty fields match anything.
type Fault struct {
	Method string
	Path   string
	// Drop closes the connection without answering.
	Drop bool
	// Status and Code describe a WebDriver error answer. Code defaults to
	// "unknown error" and Status to 500.
	Status  int
	Code    string
	Message string
	// Body, when set, is written verbatim with Status and ContentType,
	// which defaults to application/json.
	Body        string
	ContentType string
	// Times is the number of requests the fault applies to, default 1.
	Times int
}

// Server is a fake WebDriver remote end.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	pages     map[string]*Page
	sessions  map[string]*session
	scripts   map[string]ScriptFunc
	requests  []Request
	faults    []*Fault
	ids       []string
	clicks    map[*Element]int
	legacy    bool
	onRequest func(Request)
	caps      map[string]interface{}
}

// NewServer starts a server. The caller closes it.
func NewServer() *Server {
	s := &Server{
		pages:    map[string]*Page{},
		sessions: map[string]*session{},
		scripts:  map[string]ScriptFunc{},
		clicks:   map[*Element]int{},
		caps: map[string]interface{}{
			"browserName":    "webdrivertest",
			"browserVersion": "1.0",
		},
	}
	s.registerBuiltinScripts()
	s.Server = httptest.NewServer(s.routes())
	return s
}

// AddPage registers the page served at url.
func (s *Server) AddPage(url string, p *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = p
}

// SetLegacy switches the server to JSON Wire Protocol answers.
func (s *Server) SetLegacy(legacy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy = legacy
}

// SessionIDs sets the ids given to the next sessions. Random ids are used
// once they run out.
func (s *Server) SessionIDs(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, ids...)
}

// OnRequest installs a hook called, outside of any server lock, before each
// request is handled. It may block.
func (s *Server) OnRequest(fn func(Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRequest = fn
}

// Inject queues a fault.
func (s *Server) Inject(f Fault) {
	if f.Times == 0 {
		f.Times = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &f)
}

// ExpireSession forgets a session, as a remote end does when the browser dies.
func (s *Server) ExpireSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestCount counts the requests received with the given method whose path
// ends with path.
func (s *Server) RequestCount(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, path) {
			n++
		}
	}
	return n
}

// Sessions returns the ids of the live sessions.
func (s *Server) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CurrentURL returns the URL loaded in a session.
func (s *Server) CurrentURL(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.url()
	}
	return ""
}

// Clicks returns how many times el was clicked.
func (s *Server) Clicks(el *Element) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks[el]
}

// Property returns a property of el as seen by the server.
func (s *Server) Property(el *Element, name string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := el.property(name)
	return v
}

// Cookies returns the cookies of a session.
func (s *Server) Cookies(id string) []Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return sess.cookieList()
}

func (s *Server) nextID() string {
	if len(s.ids) > 0 {
		id := s.ids[0]
		s.ids = s.ids[1:]
		return id
	}
	return uuid.NewString()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recordMiddleware)
	r.Use(s.faultMiddleware)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, &Error{Status: http.StatusNotFound, Code: "unknown command", Message: r.Method + " " + r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, &Error{Status: http.StatusMethodNotAllowed, Code: "unknown method", Message: r.Method + " " + r.URL.Path})
	})
	r.Get("/status", s.handleStatus)
	r.Post("/session", s.handleNewSession)
	r.Route("/session/{sid}", func(r chi.Router) {
		r.Delete("/", s.sessionHandler(s.handleDeleteSession))
		r.Get("/timeouts", s.sessionHandler(s.handleGetTimeouts))
		r.Post("/timeouts", s.sessionHandler(s.handleSetTimeouts))
		r.Post("/url", s.sessionHandler(s.handleNavigate))
		r.Get("/url", s.sessionHandler(s.handleCurrentURL))
		r.Post("/back", s.sessionHandler(s.handleBack))
		r.Post("/forward", s.sessionHandler(s.handleForward))
		r.Post("/refresh", s.sessionHandler(s.handleRefresh))
		r.Get("/title", s.sessionHandler(s.handleTitle))
		r.Get("/source", s.sessionHandler(s.handleSource))

		r.Get("/window", s.sessionHandler(s.handleWindowHandle))
		r.Get("/window_handle", s.sessionHandler(s.handleWindowHandle))
		r.Post("/window", s.sessionHandler(s.handleSwitchToWindow))
		r.Delete("/window", s.sessionHandler(s.handleCloseWindow))
		r.Get("/window/handles", s.sessionHandler(s.handleWindowHandles))
		r.Get("/window_handles", s.sessionHandler(s.handleWindowHandles))
		r.Post("/window/new", s.sessionHandler(s.handleNewWindow))
		r.Get("/window/rect", s.sessionHandler(s.handleWindowRect))
		r.Post("/window/rect", s.sessionHandler(s.handleSetWindowRect))
		r.Post("/window/maximize", s.sessionHandler(s.handleWindowRect))
		r.Post("/window/minimize", s.sessionHandler(s.handleWindowRect))
		r.Post("/window/fullscreen", s.sessionHandler(s.handleWindowRect))
		r.Post("/frame", s.sessionHandler(s.handleSwitchToFrame))
		r.Post("/frame/parent", s.sessionHandler(s.handleSwitchToParentFrame))

		r.Post("/element", s.sessionHandler(s.handleFindElement))
		r.Post("/elements", s.sessionHandler(s.handleFindElements))
		r.Get("/element/active", s.sessionHandler(s.handleActiveElement))
		r.Route("/element/{eid}", func(r chi.Router) {
			r.Post("/element", s.sessionHandler(s.handleFindElementFrom))
			r.Post("/elements", s.sessionHandler(s.handleFindElementsFrom))
			r.Get("/shadow", s.sessionHandler(s.handleShadowRoot))
			r.Get("/selected", s.sessionHandler(s.handleElementState))
			r.Get("/enabled", s.sessionHandler(s.handleElementState))
			r.Get("/displayed", s.sessionHandler(s.handleElementState))
			r.Get("/attribute/{name}", s.sessionHandler(s.handleAttribute))
			r.Get("/property/{name}", s.sessionHandler(s.handleProperty))
			r.Get("/css/{name}", s.sessionHandler(s.handleCSSValue))
			r.Get("/text", s.sessionHandler(s.handleText))
			r.Get("/name", s.sessionHandler(s.handleTagName))
			r.Get("/rect", s.sessionHandler(s.handleElementRect))
			r.Get("/screenshot", s.sessionHandler(s.handleScreenshot))
			r.Post("/click", s.sessionHandler(s.handleClick))
			r.Post("/clear", s.sessionHandler(s.handleClear))
			r.Post("/value", s.sessionHandler(s.handleSendKeys))
		})
		r.Post("/shadow/{rid}/element", s.sessionHandler(s.handleFindElementInShadow))
		r.Post("/shadow/{rid}/elements", s.sessionHandler(s.handleFindElementsInShadow))

		r.Post("/execute/sync", s.sessionHandler(s.handleExecute))
		r.Post("/execute/async", s.sessionHandler(s.handleExecute))
		r.Post("/execute", s.sessionHandler(s.handleExecute))
		r.Post("/execute_async", s.sessionHandler(s.handleExecute))

		r.Get("/cookie", s.sessionHandler(s.handleCookies))
		r.Post("/cookie", s.sessionHandler(s.handleAddCookie))
		r.Delete("/cookie", s.sessionHandler(s.handleDeleteAllCookies))
		r.Get("/cookie/{name}", s.sessionHandler(s.handleCookie))
		r.Delete("/cookie/{name}", s.sessionHandler(s.handleDeleteCookie))

		r.Post("/actions", s.sessionHandler(s.handleActions))
		r.Delete("/actions", s.sessionHandler(s.handleReleaseActions))

		r.Post("/alert/accept", s.sessionHandler(s.handleCloseAlert))
		r.Post("/alert/dismiss", s.sessionHandler(s.handleCloseAlert))
		r.Post("/accept_alert", s.sessionHandler(s.handleCloseAlert))
		r.Post("/dismiss_alert", s.sessionHandler(s.handleCloseAlert))
		r.Get("/alert/text", s.sessionHandler(s.handleAlertText))
		r.Get("/alert_text", s.sessionHandler(s.handleAlertText))
		r.Post("/alert/text", s.sessionHandler(s.handleSendAlertText))
		r.Post("/alert_text", s.sessionHandler(s.handleSendAlertText))

		r.Get("/screenshot", s.sessionHandler(s.handleScreenshot))
	})
	return r
}

func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		req := Request{Method: r.Method, Path: r.URL.Path, Body: body, Time: time.Now()}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		hook := s.onRequest
		s.mu.Unlock()
		if hook != nil {
			hook(req)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := s.takeFault(r)
		if f == nil {
			next.ServeHTTP(w, r)
			return
		}
		if f.Drop {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		}
		status := f.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if f.Body != "" {
			ct := f.ContentType
			if ct == "" {
				ct = "application/json; charset=utf-8"
			}
			w.Header().Set("Content-Type", ct)
			w.WriteHeader(status)
			io.WriteString(w, f.Body)
			return
		}
		code := f.Code
		if code == "" {
			code = "unknown error"
		}
		s.writeError(w, &Error{Status: status, Code: code, Message: f.Message})
	})
}

func (s *Server) takeFault(r *http.Request) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.faults {
		if f.Method != "" && f.Method != r.Method {
			continue
		}
		if f.Path != "" && !strings.HasSuffix(r.URL.Path, f.Path) {
			continue
		}
		f.Times--
		if f.Times <= 0 {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
		}
		return f
	}
	return nil
}

// Error is a WebDriver error answer.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func errorf(status int, code, msg string) *Error {
	return &Error{Status: status, Code: code, Message: msg}
}

var legacyStatus = map[string]int{
	"invalid session id":       6,
	"no such element":          7,
	"no such frame":            8,
	"unknown command":          9,
	"stale element reference":  10,
	"element not interactable": 11,
	"invalid element state":    12,
	"unknown error":            13,
	"javascript error":         17,
	"invalid selector":         32,
	"timeout":                  21,
	"no such window":           23,
	"unable to set cookie":     25,
	"unexpected alert open":    26,
	"no such alert":            27,
	"script timeout":           28,
	"session not created":      33,
}

func (s *Server) isLegacy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legacy
}

func (s *Server) writeError(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if s.isLegacy() {
		status, ok := legacyStatus[e.Code]
		if !ok {
			status = 13
		}
		w.WriteHeader(e.Status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"value":  map[string]interface{}{"message": e.Message},
		})
		return
	}
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{
			"error":      e.Code,
			"message":    e.Message,
			"stacktrace": "",
		},
	})
}

func (s *Server) writeValue(w http.ResponseWriter, sessionID string, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	body := map[string]interface{}{"value": v}
	if s.isLegacy() {
		body["status"] = 0
		if sessionID != "" {
			body["sessionId"] = sessionID
		}
	}
	json.NewEncoder(w).Encode(body)
}
