// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"encoding/json"
	"sync"
)

// Web element identifiers of the W3C protocol.
const (
	elementKey       = "element-6066-11e4-a52e-4f735466cecf"
	shadowRootKey    = "shadow-6066-11e4-a52e-4f735466cecf"
	windowKey        = "window-fcc6-11e5-b4f8-330a88ab9d7f"
	frameKey         = "frame-075b-4da1-b6ba-e579c2d3230a"
	legacyElementKey = "ELEMENT"
)

// Handle is an opaque reference issued by the remote end. Handles are plain
// values: the server decides whether a reference is still valid, the client
// only checks that a handle is used with the session that issued it.
type Handle interface {
	// Ref returns the server issued reference string.
	Ref() string
	// SessionID returns the id of the owning session.
	SessionID() string
}

// wireHandle is a handle that can be sent back to the remote end.
type wireHandle interface {
	Handle
	wireKey() string
}

//A DOM element.
type ElementHandle struct {
	ref     string
	session string
}

func (h ElementHandle) Ref() string       { return h.ref }
func (h ElementHandle) SessionID() string { return h.session }
func (h ElementHandle) IsZero() bool      { return h.ref == "" }
func (h ElementHandle) String() string    { return "element " + h.ref }

func (h ElementHandle) wireKey() string { return elementKey }

func (h ElementHandle) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{elementKey: h.ref})
}

//A top-level browsing context.
type WindowHandle struct {
	ref     string
	session string
}

func (h WindowHandle) Ref() string       { return h.ref }
func (h WindowHandle) SessionID() string { return h.session }
func (h WindowHandle) IsZero() bool      { return h.ref == "" }
func (h WindowHandle) String() string    { return "window " + h.ref }

func (h WindowHandle) wireKey() string { return windowKey }

func (h WindowHandle) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{windowKey: h.ref})
}

//A child browsing context, as returned by scripts that evaluate to a window proxy of a frame.
type FrameHandle struct {
	ref     string
	session string
}

func (h FrameHandle) Ref() string       { return h.ref }
func (h FrameHandle) SessionID() string { return h.session }
func (h FrameHandle) IsZero() bool      { return h.ref == "" }
func (h FrameHandle) String() string    { return "frame " + h.ref }

func (h FrameHandle) wireKey() string { return frameKey }

func (h FrameHandle) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{frameKey: h.ref})
}

//The shadow root of an element.
type ShadowRootHandle struct {
	ref     string
	session string
}

func (h ShadowRootHandle) Ref() string       { return h.ref }
func (h ShadowRootHandle) SessionID() string { return h.session }
func (h ShadowRootHandle) IsZero() bool      { return h.ref == "" }
func (h ShadowRootHandle) String() string    { return "shadow root " + h.ref }

func (h ShadowRootHandle) wireKey() string { return shadowRootKey }

func (h ShadowRootHandle) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{shadowRootKey: h.ref})
}

type arena[H any] struct {
	byRef     map[string]H
	newHandle func(ref string) H
}

func newArena[H any](newHandle func(ref string) H) arena[H] {
	return arena[H]{byRef: map[string]H{}, newHandle: newHandle}
}

func (a *arena[H]) intern(ref string) H {
	if h, ok := a.byRef[ref]; ok {
		return h
	}
	h := a.newHandle(ref)
	a.byRef[ref] = h
	return h
}

func (a *arena[H]) lookup(ref string) (H, bool) {
	h, ok := a.byRef[ref]
	return h, ok
}

func (a *arena[H]) reset() { a.byRef = map[string]H{} }

// registry interns the handles of one session so that a reference string
// always maps to the same handle value. It does no I/O and never expires
// entries on its own; it is emptied when the session closes.
type registry struct {
	mu       sync.Mutex
	elements arena[ElementHandle]
	windows  arena[WindowHandle]
	frames   arena[FrameHandle]
	shadows  arena[ShadowRootHandle]
}

func newRegistry(session string) *registry {
	return &registry{
		elements: newArena(func(ref string) ElementHandle { return ElementHandle{ref, session} }),
		windows:  newArena(func(ref string) WindowHandle { return WindowHandle{ref, session} }),
		frames:   newArena(func(ref string) FrameHandle { return FrameHandle{ref, session} }),
		shadows:  newArena(func(ref string) ShadowRootHandle { return ShadowRootHandle{ref, session} }),
	}
}

func (r *registry) element(ref string) ElementHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elements.intern(ref)
}

func (r *registry) window(ref string) WindowHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windows.intern(ref)
}

func (r *registry) frame(ref string) FrameHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames.intern(ref)
}

func (r *registry) shadowRoot(ref string) ShadowRootHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shadows.intern(ref)
}

func (r *registry) lookupElement(ref string) (ElementHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elements.lookup(ref)
}

func (r *registry) lookupWindow(ref string) (WindowHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windows.lookup(ref)
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.elements.byRef) + len(r.windows.byRef) + len(r.frames.byRef) + len(r.shadows.byRef)
}

func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elements.reset()
	r.windows.reset()
	r.frames.reset()
	r.shadows.reset()
}

// resolve walks a decoded script result, interning every web element,
// window, frame and shadow root reference and replacing it with its handle.
func (r *registry) resolve(v interface{}, legacy bool) interface{} {
	switch x := v.(type) {
	case []interface{}:
		for i, e := range x {
			x[i] = r.resolve(e, legacy)
		}
		return x
	case map[string]interface{}:
		if len(x) == 1 || (legacy && len(x) == 2) {
			if ref, ok := x[elementKey].(string); ok {
				return r.element(ref)
			}
			if ref, ok := x[legacyElementKey].(string); ok && legacy {
				return r.element(ref)
			}
		}
		if len(x) == 1 {
			if ref, ok := x[shadowRootKey].(string); ok {
				return r.shadowRoot(ref)
			}
			if ref, ok := x[windowKey].(string); ok {
				return r.window(ref)
			}
			if ref, ok := x[frameKey].(string); ok {
				return r.frame(ref)
			}
		}
		for k, e := range x {
			x[k] = r.resolve(e, legacy)
		}
		return x
	}
	return v
}
