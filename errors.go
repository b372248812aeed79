package neon

import (
	"errors"
	"fmt"

	"github.com/nradulovic-go/neon/internal/event"
)

// ErrorCode is the closed error-kind enum from the kernel's error handling
// design: every core API function returns one, CodeNone meaning success.
type ErrorCode string

const (
	CodeNone           ErrorCode = "none"
	CodeTimeout        ErrorCode = "timeout"
	CodeOpAbort        ErrorCode = "operation aborted"
	CodeObjectNotFound ErrorCode = "object not found"
	CodeObjectInvalid  ErrorCode = "object invalid"
	CodeNoMemory       ErrorCode = "no memory"
	CodeNoResource     ErrorCode = "no resource"
	CodeNoReference    ErrorCode = "no reference"
	CodeNotImplemented ErrorCode = "not implemented"
	CodeNotPermitted   ErrorCode = "not permitted"
	CodeNotEnabled     ErrorCode = "not enabled"
	CodeNotFound       ErrorCode = "not found"
	CodeArgInvalid     ErrorCode = "invalid argument"
	CodeArgOutOfRange  ErrorCode = "argument out of range"
	CodeArgNull        ErrorCode = "argument is nil"
)

// Error is a structured kernel error carrying the operation that failed,
// its error kind, a human message, and an optional wrapped cause.
type Error struct {
	Op    string
	Code  ErrorCode
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("neon: %s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("neon: %s (%s)", msg, e.Code)
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison by error kind alone, so callers can
// write `errors.Is(err, neon.CodeNoMemory)`-shaped checks via IsCode
// instead of comparing *Error pointers.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds a structured error for op with the given kind and
// message.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps an arbitrary error with kernel operation context, mapping
// a pre-existing *Error through unchanged apart from Op.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var ne *Error
	if errors.As(inner, &ne) {
		return &Error{Op: op, Code: ne.Code, Msg: ne.Msg, Inner: ne.Inner}
	}
	return &Error{Op: op, Code: CodeOpAbort, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error carrying the given kind.
func IsCode(err error, code ErrorCode) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Code == code
	}
	return false
}

// fromEventCode maps internal/event's narrow Code enum (used to avoid an
// import cycle between internal/event and this package) onto the public
// ErrorCode surface.
func fromEventCode(c event.Code) ErrorCode {
	switch c {
	case event.CodeNone:
		return CodeNone
	case event.CodeNoMemory:
		return CodeNoMemory
	case event.CodeNoResource:
		return CodeNoResource
	case event.CodeNoReference:
		return CodeNoReference
	case event.CodeArgInvalid:
		return CodeArgInvalid
	default:
		return CodeOpAbort
	}
}

// errFromEventCode builds an *Error for op from an internal/event.Code,
// or nil if c is CodeNone.
func errFromEventCode(op string, c event.Code) error {
	if c == event.CodeNone {
		return nil
	}
	code := fromEventCode(c)
	return NewError(op, code, string(code))
}
