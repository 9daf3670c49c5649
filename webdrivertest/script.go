// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdrivertest

import (
	"errors"
	"net/http"
	"strings"
)

// ScriptCall is an execute request as seen by a ScriptFunc. Element
// references in Args are replaced with the *Element they point to.
type ScriptCall struct {
	Script string
	Args   []interface{}
	URL    string
	Page   *Page
}

// ScriptFunc evaluates a script. *Element values, alone or inside slices and
// maps, are returned to the client as element references. A returned *Error
// is sent as is, any other error as a javascript error. ScriptFuncs run under
// the server lock and must not call Server methods.
type ScriptFunc func(call *ScriptCall) (interface{}, error)

// HandleScript registers fn for the script text script, compared after
// trimming spaces.
func (s *Server) HandleScript(script string, fn ScriptFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[strings.TrimSpace(script)] = fn
}

// UserAgent is the answer of the built in navigator.userAgent script.
const UserAgent = "webdrivertest/1.0"

func (s *Server) registerBuiltinScripts() {
	element := func(call *ScriptCall, i int) (*Element, error) {
		if i < len(call.Args) {
			if el, ok := call.Args[i].(*Element); ok {
				return el, nil
			}
		}
		return nil, errors.New("argument is not an element")
	}
	s.scripts["arguments[0].scrollIntoView(true)"] = func(call *ScriptCall) (interface{}, error) {
		_, err := element(call, 0)
		return nil, err
	}
	s.scripts["arguments[0].value = arguments[1]"] = func(call *ScriptCall) (interface{}, error) {
		el, err := element(call, 0)
		if err != nil {
			return nil, err
		}
		if len(call.Args) < 2 {
			return nil, errors.New("missing value")
		}
		el.setProperty("value", call.Args[1])
		return nil, nil
	}
	s.scripts["return window.navigator.userAgent"] = func(call *ScriptCall) (interface{}, error) {
		return UserAgent, nil
	}
	s.scripts["return document.title"] = func(call *ScriptCall) (interface{}, error) {
		return call.Page.Title, nil
	}
	s.scripts["document.createElement('form').submit.call(arguments[0])"] = func(call *ScriptCall) (interface{}, error) {
		el, err := element(call, 0)
		if err != nil {
			return nil, err
		}
		n, _ := el.Properties["submitted"].(int)
		el.setProperty("submitted", n+1)
		return nil, nil
	}
	sneaky := `var h = document.createElement('input');
h.setAttribute('type', 'hidden');
h.setAttribute('name', arguments[1]);
h.value = arguments[2];
arguments[0].appendChild(h);`
	s.scripts[sneaky] = func(call *ScriptCall) (interface{}, error) {
		el, err := element(call, 0)
		if err != nil {
			return nil, err
		}
		if len(call.Args) < 3 {
			return nil, errors.New("missing field")
		}
		name, _ := call.Args[1].(string)
		if el.Children == nil {
			el.Children = map[string][]*Element{}
		}
		key := `input[name="` + name + `"]`
		el.Children[key] = append(el.Children[key], &Element{
			Tag:        "input",
			Attributes: map[string]string{"type": "hidden", "name": name},
			Properties: map[string]interface{}{"value": call.Args[2]},
		})
		return nil, nil
	}
}

func (s *Server) handleExecute(sess *session, r *http.Request, body map[string]interface{}) (interface{}, *Error) {
	script, werr := stringArg(body, "script")
	if werr != nil {
		return nil, werr
	}
	rawArgs, ok := body["args"].([]interface{})
	if !ok {
		return nil, errorf(http.StatusBadRequest, "invalid argument", "args must be an array")
	}
	args, werr := s.resolveArgs(sess, rawArgs)
	if werr != nil {
		return nil, werr
	}
	fn, ok := s.scripts[strings.TrimSpace(script)]
	if !ok {
		return nil, errorf(http.StatusInternalServerError, "javascript error", "unknown script: "+script)
	}
	v, err := fn(&ScriptCall{Script: script, Args: args, URL: sess.url(), Page: s.page(sess)})
	if err != nil {
		var werr *Error
		if errors.As(err, &werr) {
			return nil, werr
		}
		return nil, errorf(http.StatusInternalServerError, "javascript error", err.Error())
	}
	return s.wireResult(sess, v), nil
}

// resolveArgs replaces element references with elements. A reference from a
// previous page fails with stale element reference.
func (s *Server) resolveArgs(sess *session, args []interface{}) ([]interface{}, *Error) {
	out := make([]interface{}, len(args))
	for i, a := range args {
		v, werr := s.resolveArg(sess, a)
		if werr != nil {
			return nil, werr
		}
		out[i] = v
	}
	return out, nil
}

func (s *Server) resolveArg(sess *session, v interface{}) (interface{}, *Error) {
	switch x := v.(type) {
	case []interface{}:
		return s.resolveArgs(sess, x)
	case map[string]interface{}:
		if ref, ok := x[elementKey].(string); ok {
			return s.lookup(sess, ref)
		}
		if ref, ok := x[legacyElementKey].(string); ok {
			return s.lookup(sess, ref)
		}
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			r, werr := s.resolveArg(sess, e)
			if werr != nil {
				return nil, werr
			}
			out[k] = r
		}
		return out, nil
	}
	return v, nil
}

func (s *Server) wireResult(sess *session, v interface{}) interface{} {
	switch x := v.(type) {
	case *Element:
		return s.ref(sess, x)
	case []*Element:
		out := make([]interface{}, len(x))
		for i, el := range x {
			out[i] = s.ref(sess, el)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = s.wireResult(sess, e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = s.wireResult(sess, e)
		}
		return out
	}
	return v
}
