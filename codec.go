// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// CommandKind names a WebDriver endpoint known to the client.
type CommandKind string

const (
	CmdStatus                     CommandKind = "Status"
	CmdNewSession                 CommandKind = "NewSession"
	CmdDeleteSession              CommandKind = "DeleteSession"
	CmdGetTimeouts                CommandKind = "GetTimeouts"
	CmdSetTimeouts                CommandKind = "SetTimeouts"
	CmdNavigate                   CommandKind = "Navigate"
	CmdGetCurrentURL              CommandKind = "GetCurrentURL"
	CmdBack                       CommandKind = "Back"
	CmdForward                    CommandKind = "Forward"
	CmdRefresh                    CommandKind = "Refresh"
	CmdGetTitle                   CommandKind = "GetTitle"
	CmdGetPageSource              CommandKind = "GetPageSource"
	CmdGetWindowHandle            CommandKind = "GetWindowHandle"
	CmdGetWindowHandles           CommandKind = "GetWindowHandles"
	CmdCloseWindow                CommandKind = "CloseWindow"
	CmdSwitchToWindow             CommandKind = "SwitchToWindow"
	CmdNewWindow                  CommandKind = "NewWindow"
	CmdGetWindowRect              CommandKind = "GetWindowRect"
	CmdSetWindowRect              CommandKind = "SetWindowRect"
	CmdMaximizeWindow             CommandKind = "MaximizeWindow"
	CmdMinimizeWindow             CommandKind = "MinimizeWindow"
	CmdFullscreenWindow           CommandKind = "FullscreenWindow"
	CmdSwitchToFrame              CommandKind = "SwitchToFrame"
	CmdSwitchToParentFrame        CommandKind = "SwitchToParentFrame"
	CmdFindElement                CommandKind = "FindElement"
	CmdFindElements               CommandKind = "FindElements"
	CmdFindElementFromElement     CommandKind = "FindElementFromElement"
	CmdFindElementsFromElement    CommandKind = "FindElementsFromElement"
	CmdFindElementFromShadowRoot  CommandKind = "FindElementFromShadowRoot"
	CmdFindElementsFromShadowRoot CommandKind = "FindElementsFromShadowRoot"
	CmdGetActiveElement           CommandKind = "GetActiveElement"
	CmdGetElementShadowRoot       CommandKind = "GetElementShadowRoot"
	CmdIsElementSelected          CommandKind = "IsElementSelected"
	CmdGetElementAttribute        CommandKind = "GetElementAttribute"
	CmdGetElementProperty         CommandKind = "GetElementProperty"
	CmdGetElementCSSValue         CommandKind = "GetElementCSSValue"
	CmdGetElementText             CommandKind = "GetElementText"
	CmdGetElementTagName          CommandKind = "GetElementTagName"
	CmdGetElementRect             CommandKind = "GetElementRect"
	CmdIsElementEnabled           CommandKind = "IsElementEnabled"
	CmdIsElementDisplayed         CommandKind = "IsElementDisplayed"
	CmdElementClick               CommandKind = "ElementClick"
	CmdElementClear               CommandKind = "ElementClear"
	CmdElementSendKeys            CommandKind = "ElementSendKeys"
	CmdExecuteScript              CommandKind = "ExecuteScript"
	CmdExecuteAsyncScript         CommandKind = "ExecuteAsyncScript"
	CmdGetAllCookies              CommandKind = "GetAllCookies"
	CmdGetNamedCookie             CommandKind = "GetNamedCookie"
	CmdAddCookie                  CommandKind = "AddCookie"
	CmdDeleteCookie               CommandKind = "DeleteCookie"
	CmdDeleteAllCookies           CommandKind = "DeleteAllCookies"
	CmdPerformActions             CommandKind = "PerformActions"
	CmdReleaseActions             CommandKind = "ReleaseActions"
	CmdDismissAlert               CommandKind = "DismissAlert"
	CmdAcceptAlert                CommandKind = "AcceptAlert"
	CmdGetAlertText               CommandKind = "GetAlertText"
	CmdSendAlertText              CommandKind = "SendAlertText"
	CmdTakeScreenshot             CommandKind = "TakeScreenshot"
	CmdTakeElementScreenshot      CommandKind = "TakeElementScreenshot"
)

// endpoint describes the HTTP side of a command. path is a format string
// whose verbs are filled, in order, with the session id (for paths under
// /session/%s) and the command's path arguments.
type endpoint struct {
	method string
	path   string
	// legacyPath replaces path for JSON Wire Protocol sessions.
	legacyPath string
	// idempotent commands have no side effect on the browser and may be
	// retried after a transport failure.
	idempotent bool
}

var endpoints = map[CommandKind]endpoint{
	CmdStatus:                     {method: http.MethodGet, path: "/status", idempotent: true},
	CmdNewSession:                 {method: http.MethodPost, path: "/session"},
	CmdDeleteSession:              {method: http.MethodDelete, path: "/session/%s"},
	CmdGetTimeouts:                {method: http.MethodGet, path: "/session/%s/timeouts", idempotent: true},
	CmdSetTimeouts:                {method: http.MethodPost, path: "/session/%s/timeouts"},
	CmdNavigate:                   {method: http.MethodPost, path: "/session/%s/url"},
	CmdGetCurrentURL:              {method: http.MethodGet, path: "/session/%s/url", idempotent: true},
	CmdBack:                       {method: http.MethodPost, path: "/session/%s/back"},
	CmdForward:                    {method: http.MethodPost, path: "/session/%s/forward"},
	CmdRefresh:                    {method: http.MethodPost, path: "/session/%s/refresh"},
	CmdGetTitle:                   {method: http.MethodGet, path: "/session/%s/title", idempotent: true},
	CmdGetPageSource:              {method: http.MethodGet, path: "/session/%s/source", idempotent: true},
	CmdGetWindowHandle:            {method: http.MethodGet, path: "/session/%s/window", legacyPath: "/session/%s/window_handle", idempotent: true},
	CmdGetWindowHandles:           {method: http.MethodGet, path: "/session/%s/window/handles", legacyPath: "/session/%s/window_handles", idempotent: true},
	CmdCloseWindow:                {method: http.MethodDelete, path: "/session/%s/window"},
	CmdSwitchToWindow:             {method: http.MethodPost, path: "/session/%s/window"},
	CmdNewWindow:                  {method: http.MethodPost, path: "/session/%s/window/new"},
	CmdGetWindowRect:              {method: http.MethodGet, path: "/session/%s/window/rect", idempotent: true},
	CmdSetWindowRect:              {method: http.MethodPost, path: "/session/%s/window/rect"},
	CmdMaximizeWindow:             {method: http.MethodPost, path: "/session/%s/window/maximize"},
	CmdMinimizeWindow:             {method: http.MethodPost, path: "/session/%s/window/minimize"},
	CmdFullscreenWindow:           {method: http.MethodPost, path: "/session/%s/window/fullscreen"},
	CmdSwitchToFrame:              {method: http.MethodPost, path: "/session/%s/frame"},
	CmdSwitchToParentFrame:        {method: http.MethodPost, path: "/session/%s/frame/parent"},
	CmdFindElement:                {method: http.MethodPost, path: "/session/%s/element", idempotent: true},
	CmdFindElements:               {method: http.MethodPost, path: "/session/%s/elements", idempotent: true},
	CmdFindElementFromElement:     {method: http.MethodPost, path: "/session/%s/element/%s/element", idempotent: true},
	CmdFindElementsFromElement:    {method: http.MethodPost, path: "/session/%s/element/%s/elements", idempotent: true},
	CmdFindElementFromShadowRoot:  {method: http.MethodPost, path: "/session/%s/shadow/%s/element", idempotent: true},
	CmdFindElementsFromShadowRoot: {method: http.MethodPost, path: "/session/%s/shadow/%s/elements", idempotent: true},
	CmdGetActiveElement:           {method: http.MethodGet, path: "/session/%s/element/active", idempotent: true},
	CmdGetElementShadowRoot:       {method: http.MethodGet, path: "/session/%s/element/%s/shadow", idempotent: true},
	CmdIsElementSelected:          {method: http.MethodGet, path: "/session/%s/element/%s/selected", idempotent: true},
	CmdGetElementAttribute:        {method: http.MethodGet, path: "/session/%s/element/%s/attribute/%s", idempotent: true},
	CmdGetElementProperty:         {method: http.MethodGet, path: "/session/%s/element/%s/property/%s", idempotent: true},
	CmdGetElementCSSValue:         {method: http.MethodGet, path: "/session/%s/element/%s/css/%s", idempotent: true},
	CmdGetElementText:             {method: http.MethodGet, path: "/session/%s/element/%s/text", idempotent: true},
	CmdGetElementTagName:          {method: http.MethodGet, path: "/session/%s/element/%s/name", idempotent: true},
	CmdGetElementRect:             {method: http.MethodGet, path: "/session/%s/element/%s/rect", idempotent: true},
	CmdIsElementEnabled:           {method: http.MethodGet, path: "/session/%s/element/%s/enabled", idempotent: true},
	CmdIsElementDisplayed:         {method: http.MethodGet, path: "/session/%s/element/%s/displayed", idempotent: true},
	CmdElementClick:               {method: http.MethodPost, path: "/session/%s/element/%s/click"},
	CmdElementClear:               {method: http.MethodPost, path: "/session/%s/element/%s/clear"},
	CmdElementSendKeys:            {method: http.MethodPost, path: "/session/%s/element/%s/value"},
	CmdExecuteScript:              {method: http.MethodPost, path: "/session/%s/execute/sync", legacyPath: "/session/%s/execute"},
	CmdExecuteAsyncScript:         {method: http.MethodPost, path: "/session/%s/execute/async", legacyPath: "/session/%s/execute_async"},
	CmdGetAllCookies:              {method: http.MethodGet, path: "/session/%s/cookie", idempotent: true},
	CmdGetNamedCookie:             {method: http.MethodGet, path: "/session/%s/cookie/%s", idempotent: true},
	CmdAddCookie:                  {method: http.MethodPost, path: "/session/%s/cookie"},
	CmdDeleteCookie:               {method: http.MethodDelete, path: "/session/%s/cookie/%s"},
	CmdDeleteAllCookies:           {method: http.MethodDelete, path: "/session/%s/cookie"},
	CmdPerformActions:             {method: http.MethodPost, path: "/session/%s/actions"},
	CmdReleaseActions:             {method: http.MethodDelete, path: "/session/%s/actions"},
	CmdDismissAlert:               {method: http.MethodPost, path: "/session/%s/alert/dismiss", legacyPath: "/session/%s/dismiss_alert"},
	CmdAcceptAlert:                {method: http.MethodPost, path: "/session/%s/alert/accept", legacyPath: "/session/%s/accept_alert"},
	CmdGetAlertText:               {method: http.MethodGet, path: "/session/%s/alert/text", legacyPath: "/session/%s/alert_text", idempotent: true},
	CmdSendAlertText:              {method: http.MethodPost, path: "/session/%s/alert/text", legacyPath: "/session/%s/alert_text"},
	CmdTakeScreenshot:             {method: http.MethodGet, path: "/session/%s/screenshot", idempotent: true},
	CmdTakeElementScreenshot:      {method: http.MethodGet, path: "/session/%s/element/%s/screenshot", idempotent: true},
}

// Command is one encoded request. It is not modified once built and maps to
// exactly one HTTP exchange.
type Command struct {
	Kind       CommandKind
	Method     string
	Path       string
	Body       []byte
	Idempotent bool
}

// target is the session a command is addressed to.
type target struct {
	sessionID string
	legacy    bool
}

//typing saver
type params map[string]interface{}

// encodeCommand builds the request for kind. args fill the path after the
// session id and may be strings or handles; a handle owned by another session
// fails with ErrInvalidHandle.
func encodeCommand(kind CommandKind, t target, p interface{}, args ...interface{}) (*Command, error) {
	ep, ok := endpoints[kind]
	if !ok {
		return nil, &RequestError{Command: kind, Err: errors.New("unknown command")}
	}
	path := ep.path
	if t.legacy && ep.legacyPath != "" {
		path = ep.legacyPath
	}
	var pathArgs []interface{}
	if strings.HasPrefix(path, "/session/%s") {
		if t.sessionID == "" {
			return nil, &RequestError{Command: kind, Err: errors.New("no session id")}
		}
		pathArgs = append(pathArgs, url.PathEscape(t.sessionID))
	}
	for _, arg := range args {
		switch a := arg.(type) {
		case Handle:
			if err := checkOwner(a, t.sessionID); err != nil {
				return nil, err
			}
			pathArgs = append(pathArgs, url.PathEscape(a.Ref()))
		case string:
			pathArgs = append(pathArgs, url.PathEscape(a))
		default:
			return nil, &RequestError{Command: kind, Err: fmt.Errorf("unsupported path argument %T", arg)}
		}
	}
	if n := strings.Count(path, "%s"); n != len(pathArgs) {
		return nil, &RequestError{Command: kind, Err: fmt.Errorf("path %s wants %d arguments, got %d", path, n, len(pathArgs))}
	}
	cmd := &Command{
		Kind:       kind,
		Method:     ep.method,
		Path:       fmt.Sprintf(path, pathArgs...),
		Idempotent: ep.idempotent,
	}
	if ep.method == http.MethodPost {
		if p == nil {
			p = params{}
		}
		body, err := json.Marshal(p)
		if err != nil {
			return nil, &RequestError{Command: kind, Err: err}
		}
		cmd.Body = body
	}
	return cmd, nil
}

func checkOwner(h Handle, sessionID string) error {
	if h.SessionID() != sessionID {
		return fmt.Errorf("%w: %v belongs to session %q, not %q", ErrInvalidHandle, h, h.SessionID(), sessionID)
	}
	return nil
}

// reply is a decoded success envelope.
type reply struct {
	value json.RawMessage
	// sessionID is the top level session id of legacy responses.
	sessionID string
	legacy    bool
}

// decodeReply unwraps the {"value": ...} envelope and classifies failures.
func decodeReply(kind CommandKind, resp *Response) (*reply, error) {
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		if success {
			return &reply{value: json.RawMessage("null")}, nil
		}
		return nil, &ProtocolError{Command: kind, Code: UnknownError, HTTPStatus: resp.StatusCode, Message: httpStatusMessage(resp.StatusCode)}
	}
	if !isJSONContentType(resp.ContentType) {
		return nil, &TransportError{Kind: TransportBadBody, Command: kind, StatusCode: resp.StatusCode, Body: body,
			Err: fmt.Errorf("content type %q is not JSON", resp.ContentType)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &TransportError{Kind: TransportBadBody, Command: kind, StatusCode: resp.StatusCode, Body: body}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, malformed(kind, body, "response is not a JSON object")
	}
	value := root.Get("value")
	// workaround: chromedriver could return 200 on legacy errors
	if status := root.Get("status"); status.Type == gjson.Number && status.Int() != 0 {
		return nil, legacyError(kind, resp.StatusCode, int(status.Int()), value)
	}
	if value.IsObject() && value.Get("error").Type == gjson.String {
		return nil, protocolError(kind, resp.StatusCode, value)
	}
	if !success {
		perr := &ProtocolError{Command: kind, Code: UnknownError, HTTPStatus: resp.StatusCode, Message: httpStatusMessage(resp.StatusCode)}
		if value.Exists() {
			perr.Data = json.RawMessage(value.Raw)
		}
		return nil, perr
	}
	if !value.Exists() {
		return nil, malformed(kind, body, "missing value")
	}
	r := &reply{value: json.RawMessage(value.Raw)}
	if sid := root.Get("sessionId"); sid.Type == gjson.String {
		r.sessionID = sid.String()
		r.legacy = true
	}
	return r, nil
}

// isJSONContentType reports whether a reply declares a JSON body. Replies
// without a Content-Type are accepted.
func isJSONContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}

func protocolError(kind CommandKind, httpStatus int, value gjson.Result) *ProtocolError {
	code := value.Get("error").String()
	perr := &ProtocolError{
		Command:    kind,
		Code:       lookupErrorCode(code),
		Status:     code,
		HTTPStatus: httpStatus,
		Message:    value.Get("message").String(),
		Stacktrace: value.Get("stacktrace").String(),
	}
	if data := value.Get("data"); data.Exists() {
		perr.Data = json.RawMessage(data.Raw)
	}
	return perr
}

func legacyError(kind CommandKind, httpStatus, status int, value gjson.Result) *ProtocolError {
	code, ok := legacyStatusCodes[status]
	if !ok {
		code = UnknownError
	}
	perr := &ProtocolError{Command: kind, Code: code, LegacyStatus: status, HTTPStatus: httpStatus}
	if value.IsObject() {
		perr.Message = value.Get("message").String()
	} else {
		// workaround: firefox could return a string instead of a JSON object on errors
		perr.Message = value.String()
	}
	return perr
}

func httpStatusMessage(c int) string {
	switch c {
	case 400:
		return "400: Missing Command Parameters"
	case 404:
		return "404: Unknown command/Resource Not Found"
	case 405:
		return "405: Invalid Command Method"
	case 500:
		return "500: Failed Command"
	case 501:
		return "501: Unimplemented Command"
	}
	return fmt.Sprintf("%d: %s", c, http.StatusText(c))
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeValue converts a success payload into T. null is rejected.
func decodeValue[T any](kind CommandKind, raw json.RawMessage) (T, error) {
	var v T
	if isNull(raw) {
		return v, malformed(kind, raw, "unexpected null value")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &MalformedResponseError{Command: kind, Payload: raw, Err: err}
	}
	return v, nil
}

// decodeVoid checks the payload of commands that return nothing.
func decodeVoid(kind CommandKind, raw json.RawMessage, legacy bool) error {
	if isNull(raw) || legacy {
		return nil
	}
	// workaround: geckodriver returns {}
	if bytes.Equal(bytes.Join(bytes.Fields(raw), nil), []byte("{}")) {
		return nil
	}
	return malformed(kind, raw, "expected null value")
}

// decodeRef extracts a web element identifier, trying keys in order.
func decodeRef(kind CommandKind, raw json.RawMessage, keys ...string) (string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return "", malformed(kind, raw, "expected a reference object")
	}
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		var ref string
		if err := json.Unmarshal(v, &ref); err != nil || ref == "" {
			return "", malformed(kind, raw, "reference %s is not a string", key)
		}
		return ref, nil
	}
	return "", malformed(kind, raw, "missing reference %s", keys[0])
}

func decodeElementRef(kind CommandKind, raw json.RawMessage) (string, error) {
	return decodeRef(kind, raw, elementKey, legacyElementKey)
}

func decodeElementRefs(kind CommandKind, raw json.RawMessage) ([]string, error) {
	items, err := decodeValue[[]json.RawMessage](kind, raw)
	if err != nil {
		return nil, err
	}
	refs := make([]string, len(items))
	for i, item := range items {
		if refs[i], err = decodeElementRef(kind, item); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func decodePNG(kind CommandKind, raw json.RawMessage) ([]byte, error) {
	data, err := decodeValue[string](kind, raw)
	if err != nil {
		return nil, err
	}
	buf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &MalformedResponseError{Command: kind, Payload: raw, Err: err}
	}
	return buf, nil
}
