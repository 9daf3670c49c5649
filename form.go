// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"strings"
)

// Form is a FORM element of the current page.
type Form struct {
	ElementHandle
	s *Session
}

//Locate a form on the page.
func (s *Session) Form(ctx context.Context, using FindElementStrategy, value string) (Form, error) {
	h, err := s.FindElement(ctx, using, value)
	if err != nil {
		return Form{}, err
	}
	return Form{ElementHandle: h, s: s}, nil
}

//Set the value of the form input named name.
func (f Form) SetByName(ctx context.Context, name, value string) error {
	field, err := f.s.FindElementFrom(ctx, f.ElementHandle, CSSSelector, "input[name="+cssString(name)+"]")
	if err != nil {
		return err
	}
	_, err = f.s.ExecuteScriptRaw(ctx, "arguments[0].value = arguments[1]", field, value)
	return err
}

//Submit the form by clicking its first submit button.
func (f Form) Submit(ctx context.Context) error {
	return f.SubmitWith(ctx, CSSSelector, "input[type=submit],button[type=submit]")
}

//Submit the form by clicking the element found inside it.
func (f Form) SubmitWith(ctx context.Context, using FindElementStrategy, value string) error {
	button, err := f.s.FindElementFrom(ctx, f.ElementHandle, using, value)
	if err != nil {
		return err
	}
	return f.s.Click(ctx, button)
}

//Submit the form by clicking the submit button labelled label, ignoring case.
func (f Form) SubmitUsing(ctx context.Context, label string) error {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(label)
	return f.SubmitWith(ctx, CSSSelector,
		`input[type=submit][value="`+escaped+`" i],button[type=submit][value="`+escaped+`" i]`)
}

//Submit the form directly, without clicking any button.
//onsubmit handlers do not run and no submit button value is sent.
func (f Form) SubmitDirect(ctx context.Context) error {
	// the form's own submit may be shadowed by an input named "submit"
	_, err := f.s.ExecuteScriptRaw(ctx, "document.createElement('form').submit.call(arguments[0])", f.ElementHandle)
	return err
}

//Submit the form directly with an extra hidden field.
func (f Form) SubmitSneaky(ctx context.Context, field, value string) error {
	const js = `var h = document.createElement('input');
h.setAttribute('type', 'hidden');
h.setAttribute('name', arguments[1]);
h.value = arguments[2];
arguments[0].appendChild(h);`
	if _, err := f.s.ExecuteScriptRaw(ctx, js, f.ElementHandle, field, value); err != nil {
		return err
	}
	return f.SubmitDirect(ctx)
}
