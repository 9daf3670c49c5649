// Copyright 2013 Federico Sogaro. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package webdriver

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrSessionNotActive is returned, without any I/O, for commands issued
	// against a session that is not in the Active state.
	ErrSessionNotActive = errors.New("webdriver: session not active")
	// ErrInvalidHandle is returned, without any I/O, when a handle is used
	// against a session other than the one that issued it.
	ErrInvalidHandle = errors.New("webdriver: invalid handle")
)

// ErrorCode identifies an error of the WebDriver error catalog.
// Codes the client does not know are reported as UnknownError and the raw
// code is kept in ProtocolError.Status.
type ErrorCode int

const (
	UnknownError ErrorCode = iota
	DetachedShadowRoot
	ElementClickIntercepted
	ElementNotInteractable
	ElementNotSelectable
	InsecureCertificate
	InvalidArgument
	InvalidCookieDomain
	InvalidCoordinates
	InvalidElementState
	InvalidSelector
	InvalidSessionID
	JavaScriptError
	MoveTargetOutOfBounds
	NoSuchAlert
	NoSuchCookie
	NoSuchElement
	NoSuchFrame
	NoSuchShadowRoot
	NoSuchWindow
	ScriptTimeout
	SessionNotCreated
	StaleElementReference
	Timeout
	UnableToCaptureScreen
	UnableToSetCookie
	UnexpectedAlertOpen
	UnknownCommand
	UnknownMethod
	UnsupportedOperation
)

var errorCodes = map[string]ErrorCode{
	"unknown error":             UnknownError,
	"detached shadow root":      DetachedShadowRoot,
	"element click intercepted": ElementClickIntercepted,
	"element not interactable":  ElementNotInteractable,
	"element not selectable":    ElementNotSelectable,
	"insecure certificate":      InsecureCertificate,
	"invalid argument":          InvalidArgument,
	"invalid cookie domain":     InvalidCookieDomain,
	"invalid coordinates":       InvalidCoordinates,
	"invalid element state":     InvalidElementState,
	"invalid selector":          InvalidSelector,
	"invalid session id":        InvalidSessionID,
	"javascript error":          JavaScriptError,
	"move target out of bounds": MoveTargetOutOfBounds,
	"no such alert":             NoSuchAlert,
	"no such cookie":            NoSuchCookie,
	"no such element":           NoSuchElement,
	"no such frame":             NoSuchFrame,
	"no such shadow root":       NoSuchShadowRoot,
	"no such window":            NoSuchWindow,
	"script timeout":            ScriptTimeout,
	"session not created":       SessionNotCreated,
	"stale element reference":   StaleElementReference,
	"timeout":                   Timeout,
	"unable to capture screen":  UnableToCaptureScreen,
	"unable to set cookie":      UnableToSetCookie,
	"unexpected alert open":     UnexpectedAlertOpen,
	"unknown command":           UnknownCommand,
	"unknown method":            UnknownMethod,
	"unsupported operation":     UnsupportedOperation,
}

var errorCodeStrings = map[ErrorCode]string{}

func init() {
	for s, c := range errorCodes {
		errorCodeStrings[c] = s
	}
}

// String returns the wire name of the code.
func (c ErrorCode) String() string {
	if s, ok := errorCodeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("error code %d", int(c))
}

// lookupErrorCode maps a wire error code to the catalog.
func lookupErrorCode(s string) ErrorCode {
	if c, ok := errorCodes[s]; ok {
		return c
	}
	return UnknownError
}

// Numeric status codes of the JSON Wire Protocol.
var legacyStatusCodes = map[int]ErrorCode{
	6:  InvalidSessionID,
	7:  NoSuchElement,
	8:  NoSuchFrame,
	9:  UnknownCommand,
	10: StaleElementReference,
	11: ElementNotInteractable,
	12: InvalidElementState,
	13: UnknownError,
	15: ElementNotSelectable,
	17: JavaScriptError,
	19: InvalidSelector,
	21: Timeout,
	23: NoSuchWindow,
	24: InvalidCookieDomain,
	25: UnableToSetCookie,
	26: UnexpectedAlertOpen,
	27: NoSuchAlert,
	28: ScriptTimeout,
	29: InvalidCoordinates,
	32: InvalidSelector,
	33: SessionNotCreated,
	34: MoveTargetOutOfBounds,
}

// ProtocolError is an error reported by the remote end.
type ProtocolError struct {
	Command CommandKind
	Code    ErrorCode
	// Status is the error code as sent on the wire. For legacy responses it is
	// empty and LegacyStatus holds the numeric status.
	Status       string
	LegacyStatus int
	HTTPStatus   int
	Message      string
	Stacktrace   string
	// Data holds driver specific details, when present.
	Data json.RawMessage
}

func (e *ProtocolError) Error() string {
	m := "webdriver: "
	if e.Command != "" {
		m += string(e.Command) + ": "
	}
	switch {
	case e.Status != "":
		m += e.Status
	case e.LegacyStatus != 0:
		m += fmt.Sprintf("%s (status %d)", e.Code, e.LegacyStatus)
	default:
		m += e.Code.String()
	}
	if e.Message != "" {
		m += ": " + e.Message
	}
	return m
}

// TransportKind classifies transport failures.
type TransportKind int

const (
	// TransportConnection covers dial, reset and other I/O failures.
	TransportConnection TransportKind = iota
	// TransportTimeout means the per-request timeout or the caller's deadline expired.
	TransportTimeout
	// TransportCanceled means the caller abandoned the command.
	TransportCanceled
	// TransportBadBody means the remote end answered with something that is not JSON.
	TransportBadBody
)

func (k TransportKind) String() string {
	switch k {
	case TransportConnection:
		return "connection error"
	case TransportTimeout:
		return "timeout"
	case TransportCanceled:
		return "canceled"
	case TransportBadBody:
		return "malformed body"
	}
	return "transport error"
}

// TransportError reports a failure of the HTTP exchange itself.
type TransportError struct {
	Kind       TransportKind
	Command    CommandKind
	Method     string
	URL        string
	StatusCode int
	// Body is set for TransportBadBody.
	Body []byte
	Err  error
}

func (e *TransportError) Error() string {
	m := fmt.Sprintf("webdriver: %s: %s %s: %s", e.Command, e.Method, e.URL, e.Kind)
	if e.Kind == TransportBadBody {
		m += fmt.Sprintf(" (status %d): %s", e.StatusCode, truncate(e.Body, 256))
	}
	if e.Err != nil {
		m += ": " + e.Err.Error()
	}
	return m
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the exchange timed out.
func (e *TransportError) Timeout() bool { return e.Kind == TransportTimeout }

// transient reports whether retrying the exchange may succeed.
func (e *TransportError) transient() bool {
	return e.Kind == TransportConnection || e.Kind == TransportTimeout
}

// MalformedResponseError is returned when the remote end answers with JSON
// that does not have the shape the command expects.
type MalformedResponseError struct {
	Command CommandKind
	Payload json.RawMessage
	Err     error
}

func (e *MalformedResponseError) Error() string {
	m := fmt.Sprintf("webdriver: %s: malformed response", e.Command)
	if e.Err != nil {
		m += ": " + e.Err.Error()
	}
	return m + ": " + truncate(e.Payload, 256)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// RequestError is returned when a command cannot be encoded.
type RequestError struct {
	Command CommandKind
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("webdriver: %s: invalid request: %v", e.Command, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsErrorCode reports whether err is a ProtocolError with the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	var perr *ProtocolError
	return errors.As(err, &perr) && perr.Code == code
}

// IsTransportFailure reports whether err is a TransportError.
func IsTransportFailure(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}

func malformed(cmd CommandKind, payload []byte, format string, args ...any) error {
	return &MalformedResponseError{Command: cmd, Payload: payload, Err: fmt.Errorf(format, args...)}
}
