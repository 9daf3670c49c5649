// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// State is the lifecycle state of a session.
type State int

const (
	StateUninitialized State = iota
	StateCreated
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	StateUninitialized: {StateCreated},
	StateCreated:       {StateActive, StateClosing},
	StateActive:        {StateClosing},
	StateClosing:       {StateClosed},
}

//A session.
//Commands on a session run one at a time in the order they reach it; commands
//on different sessions run in parallel.
type Session struct {
	ID           string
	Capabilities Capabilities

	client *Client
	log    *zap.Logger
	legacy bool
	// slot serializes commands. semaphore.Weighted serves waiters in FIFO order.
	slot    *semaphore.Weighted
	handles *registry

	mu    sync.Mutex
	state State
}

func newSession(c *Client, id string, caps Capabilities, legacy bool) *Session {
	if caps == nil {
		caps = Capabilities{}
	}
	s := &Session{
		ID:           id,
		Capabilities: caps,
		client:       c,
		log:          c.log.With(zap.String("session_id", id)),
		legacy:       legacy,
		slot:         semaphore.NewWeighted(1),
		handles:      newRegistry(id),
	}
	s.transition(StateCreated)
	return s
}

// setup runs the post creation hook and activates the session.
func (s *Session) setup(ctx context.Context) error {
	if t := s.client.cfg.Timeouts; !t.IsZero() {
		if err := s.do(ctx, StateCreated, CmdSetTimeouts, t, nil); err != nil {
			s.log.Warn("session setup failed", zap.Error(err))
			return s.abort(ctx, err)
		}
	}
	s.mu.Lock()
	s.transition(StateActive)
	s.mu.Unlock()
	s.client.metrics.sessionUp()
	return nil
}

// abort deletes a session that failed setup.
func (s *Session) abort(ctx context.Context, cause error) error {
	s.mu.Lock()
	if s.state != StateCreated {
		// already closed by invalidate
		s.mu.Unlock()
		return cause
	}
	s.transition(StateClosing)
	s.mu.Unlock()
	if cmd, err := encodeCommand(CmdDeleteSession, s.target(), nil); err == nil {
		if _, err := s.client.execute(ctx, cmd, s.log); err != nil {
			cause = errors.Join(cause, err)
		}
	}
	s.close()
	return cause
}

// transition moves the session to state to. It must be called with s.mu
// held, except from newSession.
func (s *Session) transition(to State) {
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.log.Debug("session state", zap.Stringer("from", s.state), zap.Stringer("to", to))
			s.state = to
			return
		}
	}
	panic(fmt.Sprintf("webdriver: illegal session transition %s -> %s", s.state, to))
}

// State returns the current lifecycle state. It does not wait for commands
// in flight.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsActive() bool { return s.State() == StateActive }

// BaseURL returns the URL of the remote end owning the session.
func (s *Session) BaseURL() string { return s.client.baseURL }

// Legacy reports whether the remote end speaks the JSON Wire Protocol.
func (s *Session) Legacy() bool { return s.legacy }

func (s *Session) GetCapabilities() Capabilities { return s.Capabilities }

// LookupElement returns the handle already issued for ref, if any.
func (s *Session) LookupElement(ref string) (ElementHandle, bool) {
	return s.handles.lookupElement(ref)
}

// LookupWindow returns the window handle already issued for ref, if any.
func (s *Session) LookupWindow(ref string) (WindowHandle, bool) {
	return s.handles.lookupWindow(ref)
}

func (s *Session) target() target {
	return target{sessionID: s.ID, legacy: s.legacy}
}

func (s *Session) inState(want State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != want {
		return ErrSessionNotActive
	}
	return nil
}

func (s *Session) acquire(ctx context.Context, kind CommandKind) error {
	if err := s.slot.Acquire(ctx, 1); err != nil {
		return contextFailure(&Command{Kind: kind}, err)
	}
	return nil
}

// call runs one command while the session is Active and returns the payload.
func (s *Session) call(ctx context.Context, kind CommandKind, p interface{}, args ...interface{}) (json.RawMessage, error) {
	var value json.RawMessage
	err := s.do(ctx, StateActive, kind, p, &value, args...)
	return value, err
}

// do checks the state, encodes, waits for the slot and executes. Nothing is
// sent if the session is not in state want or a handle is foreign. out, when
// not nil, receives the payload.
func (s *Session) do(ctx context.Context, want State, kind CommandKind, p interface{}, out *json.RawMessage, args ...interface{}) error {
	if err := s.inState(want); err != nil {
		return err
	}
	cmd, err := encodeCommand(kind, s.target(), p, args...)
	if err != nil {
		return err
	}
	if err := s.acquire(ctx, kind); err != nil {
		return err
	}
	defer s.slot.Release(1)
	// the session may have closed while queued
	if err := s.inState(want); err != nil {
		return err
	}
	r, err := s.client.execute(ctx, cmd, s.log)
	if err != nil {
		if IsErrorCode(err, InvalidSessionID) {
			s.invalidate(err)
		}
		return err
	}
	if out != nil {
		*out = r.value
	}
	return nil
}

// invalidate closes a session the remote end no longer knows. The slot is
// held by the caller.
func (s *Session) invalidate(cause error) {
	s.mu.Lock()
	if s.state != StateActive && s.state != StateCreated {
		s.mu.Unlock()
		return
	}
	wasActive := s.state == StateActive
	s.log.Info("session invalidated by remote end", zap.Error(cause))
	s.transition(StateClosing)
	s.mu.Unlock()
	s.close()
	if wasActive {
		s.client.metrics.sessionDown()
	}
}

func (s *Session) close() {
	s.mu.Lock()
	s.transition(StateClosed)
	s.mu.Unlock()
	s.handles.clear()
}

//Delete the session.
//Delete waits for the commands queued before it. The session is Closed when
//Delete returns, whether or not the remote end acknowledged the request.
func (s *Session) Delete(ctx context.Context) error {
	if err := s.inState(StateActive); err != nil {
		return err
	}
	if err := s.acquire(ctx, CmdDeleteSession); err != nil {
		return err
	}
	defer s.slot.Release(1)
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrSessionNotActive
	}
	s.transition(StateClosing)
	s.mu.Unlock()
	s.client.metrics.sessionDown()

	cmd, err := encodeCommand(CmdDeleteSession, s.target(), nil)
	if err == nil {
		var r *reply
		if r, err = s.client.execute(ctx, cmd, s.log); err == nil {
			err = decodeVoid(CmdDeleteSession, r.value, s.legacy)
		}
	}
	s.close()
	return err
}

// void runs a command whose result carries no data.
func (s *Session) void(ctx context.Context, kind CommandKind, p interface{}, args ...interface{}) error {
	value, err := s.call(ctx, kind, p, args...)
	if err != nil {
		return err
	}
	return decodeVoid(kind, value, s.legacy)
}

// get runs a command and decodes its result into T.
func get[T any](ctx context.Context, s *Session, kind CommandKind, p interface{}, args ...interface{}) (T, error) {
	value, err := s.call(ctx, kind, p, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeValue[T](kind, value)
}

// encodeArg validates and encodes handles found in script or action
// arguments. Slices, arrays, maps, pointers and struct fields are walked, so a
// handle at any depth is checked against the session.
func (s *Session) encodeArg(v interface{}) (interface{}, error) {
	if h, ok := v.(wireHandle); ok {
		if err := checkOwner(h, s.ID); err != nil {
			return nil, err
		}
		ref := map[string]string{h.wireKey(): h.Ref()}
		if s.legacy && h.wireKey() == elementKey {
			ref[legacyElementKey] = h.Ref()
		}
		return ref, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return v, nil
		}
		return s.encodeArg(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() || rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, nil
		}
		return s.encodeList(rv)
	case reflect.Array:
		return s.encodeList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return v, nil
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			e, err := s.encodeArg(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			if iter.Key().Kind() == reflect.String {
				out[iter.Key().String()] = e
			}
		}
		if rv.Type().Key().Kind() != reflect.String {
			// values are checked, encoding/json handles the keys
			return v, nil
		}
		return out, nil
	case reflect.Struct:
		fields, err := s.encodeStruct(rv)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(json.Marshaler); ok {
			return v, nil
		}
		return fields, nil
	}
	return v, nil
}

func (s *Session) encodeList(rv reflect.Value) ([]interface{}, error) {
	out := make([]interface{}, rv.Len())
	for i := range out {
		var err error
		if out[i], err = s.encodeArg(rv.Index(i).Interface()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// encodeStruct encodes the exported fields of a struct following their json
// tags. Embedded structs without a tag are inlined.
func (s *Session) encodeStruct(rv reflect.Value) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		fv := rv.Field(i)
		if f.Anonymous && name == "" && fv.Kind() == reflect.Struct && !fv.Type().Implements(wireHandleType) {
			inner, err := s.encodeStruct(fv)
			if err != nil {
				return nil, err
			}
			for k, e := range inner {
				if _, ok := out[k]; !ok {
					out[k] = e
				}
			}
			continue
		}
		if name == "" {
			name = f.Name
		}
		if strings.Contains(opts, "omitempty") && isEmptyValue(fv) {
			continue
		}
		e, err := s.encodeArg(fv.Interface())
		if err != nil {
			return nil, err
		}
		out[name] = e
	}
	return out, nil
}

var wireHandleType = reflect.TypeOf((*wireHandle)(nil)).Elem()

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	}
	return v.IsZero()
}

// decodeResult decodes a script result, interning and substituting every
// web element, window, frame and shadow root reference.
func (s *Session) decodeResult(kind CommandKind, raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, &MalformedResponseError{Command: kind, Payload: raw, Err: err}
	}
	return s.handles.resolve(v, s.legacy), nil
}
