// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

type FindElementStrategy string

const (
	//Returns an element whose class name contains the search value; compound class names are not permitted.
	ClassName = FindElementStrategy("class name")
	//Returns an element matching a CSS selector.
	CSSSelector = FindElementStrategy("css selector")
	//Returns an element whose ID attribute matches the search value.
	ID = FindElementStrategy("id")
	//Returns an element whose NAME attribute matches the search value.
	Name = FindElementStrategy("name")
	//Returns an anchor element whose visible text matches the search value.
	LinkText = FindElementStrategy("link text")
	//Returns an anchor element whose visible text partially matches the search value.
	PartialLinkText = FindElementStrategy("partial link text")
	//Returns an element whose tag name matches the search value.
	TagName = FindElementStrategy("tag name")
	//Returns an element matching an XPath expression.
	XPath = FindElementStrategy("xpath")
)

// ErrNotALink is returned by Follow for elements without an href attribute.
var ErrNotALink = errors.New("webdriver: element has no href attribute")

// locatorParams builds a find request body. W3C remote ends dropped the id,
// name and class name strategies, they are rewritten to css selectors.
func locatorParams(using FindElementStrategy, value string, legacy bool) params {
	if !legacy {
		switch using {
		case ID:
			using, value = CSSSelector, "[id="+cssString(value)+"]"
		case Name:
			using, value = CSSSelector, "[name="+cssString(value)+"]"
		case ClassName:
			using, value = CSSSelector, "."+cssIdent(value)
		}
	}
	return params{"using": using, "value": value}
}

// cssString quotes s as a CSS string.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}

// cssIdent escapes s for use as a CSS identifier.
func cssIdent(s string) string {
	var b strings.Builder
	for i, c := range s {
		switch {
		case i == 0 && unicode.IsDigit(c):
			fmt.Fprintf(&b, `\%x `, c)
		case c == '-' || c == '_' || c >= 0x80 || unicode.IsLetter(c) || unicode.IsDigit(c):
			b.WriteRune(c)
		default:
			b.WriteByte('\\')
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (s *Session) findOne(ctx context.Context, kind CommandKind, using FindElementStrategy, value string, args ...interface{}) (ElementHandle, error) {
	raw, err := s.call(ctx, kind, locatorParams(using, value, s.legacy), args...)
	if err != nil {
		return ElementHandle{}, err
	}
	ref, err := decodeElementRef(kind, raw)
	if err != nil {
		return ElementHandle{}, err
	}
	return s.handles.element(ref), nil
}

func (s *Session) findAll(ctx context.Context, kind CommandKind, using FindElementStrategy, value string, args ...interface{}) ([]ElementHandle, error) {
	raw, err := s.call(ctx, kind, locatorParams(using, value, s.legacy), args...)
	if err != nil {
		return nil, err
	}
	refs, err := decodeElementRefs(kind, raw)
	if err != nil {
		return nil, err
	}
	elements := make([]ElementHandle, len(refs))
	for i, ref := range refs {
		elements[i] = s.handles.element(ref)
	}
	return elements, nil
}

//Search for an element on the page, starting from the document root.
func (s *Session) FindElement(ctx context.Context, using FindElementStrategy, value string) (ElementHandle, error) {
	return s.findOne(ctx, CmdFindElement, using, value)
}

//Search for multiple elements on the page, starting from the document root.
func (s *Session) FindElements(ctx context.Context, using FindElementStrategy, value string) ([]ElementHandle, error) {
	return s.findAll(ctx, CmdFindElements, using, value)
}

//Search for an element on the page, starting from the identified element.
func (s *Session) FindElementFrom(ctx context.Context, root ElementHandle, using FindElementStrategy, value string) (ElementHandle, error) {
	return s.findOne(ctx, CmdFindElementFromElement, using, value, root)
}

//Search for multiple elements on the page, starting from the identified element.
func (s *Session) FindElementsFrom(ctx context.Context, root ElementHandle, using FindElementStrategy, value string) ([]ElementHandle, error) {
	return s.findAll(ctx, CmdFindElementsFromElement, using, value, root)
}

//Search for an element inside a shadow root.
func (s *Session) FindElementInShadowRoot(ctx context.Context, root ShadowRootHandle, using FindElementStrategy, value string) (ElementHandle, error) {
	return s.findOne(ctx, CmdFindElementFromShadowRoot, using, value, root)
}

func (s *Session) FindElementsInShadowRoot(ctx context.Context, root ShadowRootHandle, using FindElementStrategy, value string) ([]ElementHandle, error) {
	return s.findAll(ctx, CmdFindElementsFromShadowRoot, using, value, root)
}

//Get the element on the page that currently has focus.
func (s *Session) ActiveElement(ctx context.Context) (ElementHandle, error) {
	raw, err := s.call(ctx, CmdGetActiveElement, nil)
	if err != nil {
		return ElementHandle{}, err
	}
	ref, err := decodeElementRef(CmdGetActiveElement, raw)
	if err != nil {
		return ElementHandle{}, err
	}
	return s.handles.element(ref), nil
}

//Get the shadow root attached to an element.
func (s *Session) ShadowRoot(ctx context.Context, el ElementHandle) (ShadowRootHandle, error) {
	raw, err := s.call(ctx, CmdGetElementShadowRoot, nil, el)
	if err != nil {
		return ShadowRootHandle{}, err
	}
	ref, err := decodeRef(CmdGetElementShadowRoot, raw, shadowRootKey)
	if err != nil {
		return ShadowRootHandle{}, err
	}
	return s.handles.shadowRoot(ref), nil
}

//Click on an element.
func (s *Session) Click(ctx context.Context, el ElementHandle) error {
	return s.void(ctx, CmdElementClick, nil, el)
}

//Clear a TEXTAREA or text INPUT element's value.
func (s *Session) Clear(ctx context.Context, el ElementHandle) error {
	return s.void(ctx, CmdElementClear, nil, el)
}

//Send a sequence of key strokes to an element.
func (s *Session) SendKeys(ctx context.Context, el ElementHandle, text string) error {
	keys := strings.Split(text, "")
	return s.void(ctx, CmdElementSendKeys, params{"text": text, "value": keys}, el)
}

//Returns the visible text for the element.
func (s *Session) ElementText(ctx context.Context, el ElementHandle) (string, error) {
	return get[string](ctx, s, CmdGetElementText, nil, el)
}

//Get the value of an element's attribute. ok is false if the attribute is not set.
func (s *Session) ElementAttribute(ctx context.Context, el ElementHandle, name string) (value string, ok bool, err error) {
	raw, err := s.call(ctx, CmdGetElementAttribute, nil, el, name)
	if err != nil || isNull(raw) {
		return "", false, err
	}
	value, err = decodeValue[string](CmdGetElementAttribute, raw)
	return value, err == nil, err
}

//Get the value of an element's DOM property. References in the value are returned as handles.
func (s *Session) ElementProperty(ctx context.Context, el ElementHandle, name string) (interface{}, error) {
	raw, err := s.call(ctx, CmdGetElementProperty, nil, el, name)
	if err != nil {
		return nil, err
	}
	return s.decodeResult(CmdGetElementProperty, raw)
}

//Query the value of an element's computed CSS property.
func (s *Session) ElementCSSValue(ctx context.Context, el ElementHandle, name string) (string, error) {
	return get[string](ctx, s, CmdGetElementCSSValue, nil, el, name)
}

//Query for an element's tag name.
func (s *Session) ElementTagName(ctx context.Context, el ElementHandle) (string, error) {
	return get[string](ctx, s, CmdGetElementTagName, nil, el)
}

//Determine an element's location and size.
func (s *Session) ElementRect(ctx context.Context, el ElementHandle) (Rect, error) {
	return get[Rect](ctx, s, CmdGetElementRect, nil, el)
}

//Determine if an OPTION element, or an INPUT element of type checkbox or radiobutton is currently selected.
func (s *Session) IsSelected(ctx context.Context, el ElementHandle) (bool, error) {
	return get[bool](ctx, s, CmdIsElementSelected, nil, el)
}

//Determine if an element is currently enabled.
func (s *Session) IsEnabled(ctx context.Context, el ElementHandle) (bool, error) {
	return get[bool](ctx, s, CmdIsElementEnabled, nil, el)
}

//Determine if an element is currently displayed.
func (s *Session) IsDisplayed(ctx context.Context, el ElementHandle) (bool, error) {
	return get[bool](ctx, s, CmdIsElementDisplayed, nil, el)
}

//Take a screenshot of an element. The PNG image is returned.
func (s *Session) ElementScreenshot(ctx context.Context, el ElementHandle) ([]byte, error) {
	raw, err := s.call(ctx, CmdTakeElementScreenshot, nil, el)
	if err != nil {
		return nil, err
	}
	return decodePNG(CmdTakeElementScreenshot, raw)
}

//Get the HTML of an element, its content only when inner is true.
func (s *Session) ElementHTML(ctx context.Context, el ElementHandle, inner bool) (string, error) {
	prop := "outerHTML"
	if inner {
		prop = "innerHTML"
	}
	return get[string](ctx, s, CmdGetElementProperty, nil, el, prop)
}

//Scroll an element into view.
func (s *Session) ScrollIntoView(ctx context.Context, el ElementHandle) error {
	_, err := s.ExecuteScriptRaw(ctx, "arguments[0].scrollIntoView(true)", el)
	return err
}

//Navigate to the href target of an element without clicking it.
func (s *Session) Follow(ctx context.Context, el ElementHandle) error {
	href, ok, err := s.ElementAttribute(ctx, el, "href")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %v", ErrNotALink, el)
	}
	return s.Navigate(ctx, href)
}

//WebElement binds an element handle to its session.
type WebElement struct {
	ElementHandle
	s *Session
}

// WebElement wraps h. The handle is not checked against the session until it
// is used.
func (s *Session) WebElement(h ElementHandle) WebElement {
	return WebElement{ElementHandle: h, s: s}
}

func (s *Session) webElements(hs []ElementHandle) []WebElement {
	elements := make([]WebElement, len(hs))
	for i, h := range hs {
		elements[i] = s.WebElement(h)
	}
	return elements
}

func (e WebElement) Session() *Session { return e.s }

//Search for an element on the page, starting from this element.
func (e WebElement) FindElement(ctx context.Context, using FindElementStrategy, value string) (WebElement, error) {
	h, err := e.s.FindElementFrom(ctx, e.ElementHandle, using, value)
	return e.s.WebElement(h), err
}

//Search for multiple elements on the page, starting from this element.
func (e WebElement) FindElements(ctx context.Context, using FindElementStrategy, value string) ([]WebElement, error) {
	hs, err := e.s.FindElementsFrom(ctx, e.ElementHandle, using, value)
	if err != nil {
		return nil, err
	}
	return e.s.webElements(hs), nil
}

func (e WebElement) WaitForElement(ctx context.Context, using FindElementStrategy, value string) (WebElement, error) {
	h, err := waitFor(ctx, func() (ElementHandle, error) {
		return e.s.FindElementFrom(ctx, e.ElementHandle, using, value)
	})
	return e.s.WebElement(h), err
}

func (e WebElement) ShadowRoot(ctx context.Context) (ShadowRootHandle, error) {
	return e.s.ShadowRoot(ctx, e.ElementHandle)
}

func (e WebElement) Click(ctx context.Context) error { return e.s.Click(ctx, e.ElementHandle) }
func (e WebElement) Clear(ctx context.Context) error { return e.s.Clear(ctx, e.ElementHandle) }

func (e WebElement) SendKeys(ctx context.Context, text string) error {
	return e.s.SendKeys(ctx, e.ElementHandle, text)
}

func (e WebElement) Text(ctx context.Context) (string, error) {
	return e.s.ElementText(ctx, e.ElementHandle)
}

func (e WebElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	return e.s.ElementAttribute(ctx, e.ElementHandle, name)
}

func (e WebElement) Property(ctx context.Context, name string) (interface{}, error) {
	return e.s.ElementProperty(ctx, e.ElementHandle, name)
}

func (e WebElement) CSSValue(ctx context.Context, name string) (string, error) {
	return e.s.ElementCSSValue(ctx, e.ElementHandle, name)
}

func (e WebElement) TagName(ctx context.Context) (string, error) {
	return e.s.ElementTagName(ctx, e.ElementHandle)
}

func (e WebElement) Rect(ctx context.Context) (Rect, error) {
	return e.s.ElementRect(ctx, e.ElementHandle)
}

func (e WebElement) IsSelected(ctx context.Context) (bool, error) {
	return e.s.IsSelected(ctx, e.ElementHandle)
}

func (e WebElement) IsEnabled(ctx context.Context) (bool, error) {
	return e.s.IsEnabled(ctx, e.ElementHandle)
}

func (e WebElement) IsDisplayed(ctx context.Context) (bool, error) {
	return e.s.IsDisplayed(ctx, e.ElementHandle)
}

func (e WebElement) Screenshot(ctx context.Context) ([]byte, error) {
	return e.s.ElementScreenshot(ctx, e.ElementHandle)
}

func (e WebElement) HTML(ctx context.Context, inner bool) (string, error) {
	return e.s.ElementHTML(ctx, e.ElementHandle, inner)
}

func (e WebElement) ScrollIntoView(ctx context.Context) error {
	return e.s.ScrollIntoView(ctx, e.ElementHandle)
}

func (e WebElement) Follow(ctx context.Context) error {
	return e.s.Follow(ctx, e.ElementHandle)
}
