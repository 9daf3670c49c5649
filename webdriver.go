// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

//Server details.
type Status struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Build   Build  `json:"build"`
	OS      OS     `json:"os"`
}

//Server built details.
type Build struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`
	Time     string `json:"time"`
}

//Server OS details
type OS struct {
	Arch    string `json:"arch"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

//Capabilities is a map that stores capabilities of a session.
type Capabilities map[string]interface{}

// Timeouts of a session. Zero fields are left unchanged by SetTimeouts.
type Timeouts struct {
	Script   time.Duration `yaml:"script"`
	PageLoad time.Duration `yaml:"page_load"`
	Implicit time.Duration `yaml:"implicit"`
}

func (t Timeouts) IsZero() bool { return t == Timeouts{} }

type wireTimeouts struct {
	Script   *int64 `json:"script,omitempty"`
	PageLoad *int64 `json:"pageLoad,omitempty"`
	Implicit *int64 `json:"implicit,omitempty"`
}

func (t Timeouts) MarshalJSON() ([]byte, error) {
	ms := func(d time.Duration) *int64 {
		if d == 0 {
			return nil
		}
		v := d.Milliseconds()
		return &v
	}
	return json.Marshal(wireTimeouts{ms(t.Script), ms(t.PageLoad), ms(t.Implicit)})
}

func (t *Timeouts) UnmarshalJSON(data []byte) error {
	var w wireTimeouts
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d := func(v *int64) time.Duration {
		if v == nil {
			return 0
		}
		return time.Duration(*v) * time.Millisecond
	}
	*t = Timeouts{Script: d(w.Script), PageLoad: d(w.PageLoad), Implicit: d(w.Implicit)}
	return nil
}

// Rect is the position and size of a window or element.
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

// ActionSequence is one input source of a PerformActions call.
type ActionSequence struct {
	// Type is "none", "key", "pointer" or "wheel".
	Type       string                 `json:"type"`
	ID         string                 `json:"id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Actions    []Action               `json:"actions"`
}

// Action is a single tick of an input source, e.g.
// {"type": "pointerMove", "origin": elementHandle, "x": 0, "y": 0}.
type Action map[string]interface{}

//Retrieve the timeouts of the session.
func (s *Session) GetTimeouts(ctx context.Context) (Timeouts, error) {
	return get[Timeouts](ctx, s, CmdGetTimeouts, nil)
}

//Configure the amount of time that a particular type of operation can execute for before they are aborted and a |Timeout| error is returned to the client.
func (s *Session) SetTimeouts(ctx context.Context, t Timeouts) error {
	return s.void(ctx, CmdSetTimeouts, t)
}

//Navigate to a new URL.
//A relative URL is resolved against the current URL.
func (s *Session) Navigate(ctx context.Context, rawurl string) error {
	u, err := url.Parse(rawurl)
	if err != nil {
		return &RequestError{Command: CmdNavigate, Err: err}
	}
	if !u.IsAbs() {
		current, err := s.CurrentURL(ctx)
		if err != nil {
			return err
		}
		base, err := url.Parse(current)
		if err != nil {
			return malformed(CmdGetCurrentURL, []byte(current), "current url: %v", err)
		}
		rawurl = base.ResolveReference(u).String()
	}
	return s.void(ctx, CmdNavigate, params{"url": rawurl})
}

//Retrieve the URL of the current page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return get[string](ctx, s, CmdGetCurrentURL, nil)
}

//Navigate backwards in the browser history, if possible.
func (s *Session) Back(ctx context.Context) error {
	return s.void(ctx, CmdBack, nil)
}

//Navigate forwards in the browser history, if possible.
func (s *Session) Forward(ctx context.Context) error {
	return s.void(ctx, CmdForward, nil)
}

//Refresh the current page.
func (s *Session) Refresh(ctx context.Context) error {
	return s.void(ctx, CmdRefresh, nil)
}

//Get the current page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	return get[string](ctx, s, CmdGetTitle, nil)
}

//Get the current page source.
func (s *Session) Source(ctx context.Context) (string, error) {
	return get[string](ctx, s, CmdGetPageSource, nil)
}

//Retrieve the current window handle.
func (s *Session) WindowHandle(ctx context.Context) (WindowHandle, error) {
	ref, err := get[string](ctx, s, CmdGetWindowHandle, nil)
	if err != nil {
		return WindowHandle{}, err
	}
	return s.handles.window(ref), nil
}

//Retrieve the list of all window handles available to the session.
func (s *Session) WindowHandles(ctx context.Context) ([]WindowHandle, error) {
	refs, err := get[[]string](ctx, s, CmdGetWindowHandles, nil)
	if err != nil {
		return nil, err
	}
	return s.windows(refs), nil
}

func (s *Session) windows(refs []string) []WindowHandle {
	handles := make([]WindowHandle, len(refs))
	for i, ref := range refs {
		handles[i] = s.handles.window(ref)
	}
	return handles
}

//Change focus to another window.
func (s *Session) SwitchToWindow(ctx context.Context, w WindowHandle) error {
	if err := checkOwner(w, s.ID); err != nil {
		return err
	}
	p := params{"handle": w.Ref()}
	if s.legacy {
		p["name"] = w.Ref()
	}
	return s.void(ctx, CmdSwitchToWindow, p)
}

//Close the current window. The handles of the remaining windows are returned.
func (s *Session) CloseWindow(ctx context.Context) ([]WindowHandle, error) {
	value, err := s.call(ctx, CmdCloseWindow, nil)
	if err != nil {
		return nil, err
	}
	if isNull(value) {
		return nil, nil
	}
	refs, err := decodeValue[[]string](CmdCloseWindow, value)
	if err != nil {
		return nil, err
	}
	return s.windows(refs), nil
}

type newWindowReply struct {
	Handle string `json:"handle"`
	Type   string `json:"type"`
}

//Open a new top-level browsing context. typ is a hint, "tab" or "window"; the kind actually created is returned.
func (s *Session) NewWindow(ctx context.Context, typ string) (WindowHandle, string, error) {
	p := params{}
	if typ != "" {
		p["type"] = typ
	}
	v, err := get[newWindowReply](ctx, s, CmdNewWindow, p)
	if err != nil {
		return WindowHandle{}, "", err
	}
	if v.Handle == "" {
		return WindowHandle{}, "", malformed(CmdNewWindow, nil, "missing handle")
	}
	return s.handles.window(v.Handle), v.Type, nil
}

//Get the position and size of the current window.
func (s *Session) WindowRect(ctx context.Context) (Rect, error) {
	return get[Rect](ctx, s, CmdGetWindowRect, nil)
}

//Change the position and size of the current window.
func (s *Session) SetWindowRect(ctx context.Context, r Rect) (Rect, error) {
	return get[Rect](ctx, s, CmdSetWindowRect, r)
}

//Maximize the current window.
func (s *Session) MaximizeWindow(ctx context.Context) (Rect, error) {
	return get[Rect](ctx, s, CmdMaximizeWindow, nil)
}

//Minimize the current window.
func (s *Session) MinimizeWindow(ctx context.Context) (Rect, error) {
	return get[Rect](ctx, s, CmdMinimizeWindow, nil)
}

func (s *Session) FullscreenWindow(ctx context.Context) (Rect, error) {
	return get[Rect](ctx, s, CmdFullscreenWindow, nil)
}

//Change focus to another frame on the page.
//id is nil for the top level browsing context, an int index, an
//ElementHandle or WebElement of a frame or iframe, or a FrameHandle.
func (s *Session) SwitchToFrame(ctx context.Context, id interface{}) error {
	p := params{"id": nil}
	switch fid := id.(type) {
	case nil:
	case int:
		if fid < 0 || fid > 65535 {
			return &RequestError{Command: CmdSwitchToFrame, Err: fmt.Errorf("frame index %d out of range", fid)}
		}
		p["id"] = fid
	case string:
		if !s.legacy {
			return &RequestError{Command: CmdSwitchToFrame, Err: fmt.Errorf("frame names are not supported")}
		}
		p["id"] = fid
	case wireHandle:
		ref, err := s.encodeArg(fid)
		if err != nil {
			return err
		}
		p["id"] = ref
	default:
		return &RequestError{Command: CmdSwitchToFrame, Err: fmt.Errorf("invalid type %T", id)}
	}
	return s.void(ctx, CmdSwitchToFrame, p)
}

//Change focus to the parent context.
func (s *Session) SwitchToParentFrame(ctx context.Context) error {
	return s.void(ctx, CmdSwitchToParentFrame, nil)
}

func (s *Session) scriptParams(script string, args []interface{}) (params, error) {
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := s.encodeArg(args)
	if err != nil {
		return nil, err
	}
	return params{"script": script, "args": encoded}, nil
}

// Inject a snippet of JavaScript into the page for execution in the context of the currently selected frame. The executed script is assumed to be synchronous and the result of evaluating the script is returned to the client.
// Arguments may be any JSON value; handles, at any depth, are sent as references and must belong to this session. References in the result are returned as handles, numbers as json.Number.
func (s *Session) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	raw, err := s.ExecuteScriptRaw(ctx, script, args...)
	if err != nil {
		return nil, err
	}
	return s.decodeResult(CmdExecuteScript, raw)
}

// ExecuteScriptRaw is ExecuteScript returning the undecoded result.
func (s *Session) ExecuteScriptRaw(ctx context.Context, script string, args ...interface{}) (json.RawMessage, error) {
	p, err := s.scriptParams(script, args)
	if err != nil {
		return nil, err
	}
	return s.call(ctx, CmdExecuteScript, p)
}

// Inject a snippet of JavaScript into the page for execution in the context of the currently selected frame. The executed script is assumed to be asynchronous and must signal that is done by invoking the provided callback, which is always provided as the final argument to the function. The value to this callback will be returned to the client.
func (s *Session) ExecuteAsyncScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	p, err := s.scriptParams(script, args)
	if err != nil {
		return nil, err
	}
	raw, err := s.call(ctx, CmdExecuteAsyncScript, p)
	if err != nil {
		return nil, err
	}
	return s.decodeResult(CmdExecuteAsyncScript, raw)
}

//Retrieve all cookies visible to the current page.
func (s *Session) Cookies(ctx context.Context) ([]Cookie, error) {
	value, err := s.call(ctx, CmdGetAllCookies, nil)
	if err != nil {
		return nil, err
	}
	if isNull(value) {
		return nil, nil
	}
	return decodeValue[[]Cookie](CmdGetAllCookies, value)
}

//Retrieve the cookie with the given name.
func (s *Session) Cookie(ctx context.Context, name string) (Cookie, error) {
	return get[Cookie](ctx, s, CmdGetNamedCookie, nil, name)
}

//Set a cookie.
func (s *Session) AddCookie(ctx context.Context, cookie Cookie) error {
	return s.void(ctx, CmdAddCookie, params{"cookie": cookie})
}

//Delete the cookie with the given name.
func (s *Session) DeleteCookie(ctx context.Context, name string) error {
	return s.void(ctx, CmdDeleteCookie, nil, name)
}

//Delete all cookies visible to the current page.
func (s *Session) DeleteAllCookies(ctx context.Context) error {
	return s.void(ctx, CmdDeleteAllCookies, nil)
}

//Accepts the currently displayed alert dialog.
func (s *Session) AcceptAlert(ctx context.Context) error {
	return s.void(ctx, CmdAcceptAlert, nil)
}

//Dismisses the currently displayed alert dialog.
func (s *Session) DismissAlert(ctx context.Context) error {
	return s.void(ctx, CmdDismissAlert, nil)
}

//Gets the text of the currently displayed JavaScript alert(), confirm(), or prompt() dialog.
func (s *Session) AlertText(ctx context.Context) (string, error) {
	return get[string](ctx, s, CmdGetAlertText, nil)
}

//Sends keystrokes to a JavaScript prompt() dialog.
func (s *Session) SendAlertText(ctx context.Context, text string) error {
	return s.void(ctx, CmdSendAlertText, params{"text": text})
}

//Perform a sequence of input actions. Element origins must belong to this session.
func (s *Session) PerformActions(ctx context.Context, actions []ActionSequence) error {
	seqs := make([]interface{}, len(actions))
	for i, a := range actions {
		ticks := make([]interface{}, len(a.Actions))
		for j, tick := range a.Actions {
			ticks[j] = map[string]interface{}(tick)
		}
		seq := map[string]interface{}{"type": a.Type, "id": a.ID, "actions": ticks}
		if a.Parameters != nil {
			seq["parameters"] = a.Parameters
		}
		seqs[i] = seq
	}
	encoded, err := s.encodeArg(seqs)
	if err != nil {
		return err
	}
	return s.void(ctx, CmdPerformActions, params{"actions": encoded})
}

//Release all keys and pointer buttons that are currently depressed.
func (s *Session) ReleaseActions(ctx context.Context) error {
	return s.void(ctx, CmdReleaseActions, nil)
}

//Take a screenshot of the current page. The PNG image is returned.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	value, err := s.call(ctx, CmdTakeScreenshot, nil)
	if err != nil {
		return nil, err
	}
	return decodePNG(CmdTakeScreenshot, value)
}
