// Package faults defines the application fault type raised by handlers and
// services, and the classification used when a fault is logged.
//
// A *Fault carries an explicit numeric code (400, 404, 409...) and a message
// safe to show to the caller. Anything else reaching the request boundary is
// treated as an unclassified fault and answered with a generic 500.
package faults

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// Explicit codes used across the service.
const (
	CodeBadRequest   = http.StatusBadRequest
	CodeUnauthorized = http.StatusUnauthorized
	CodeNotFound     = http.StatusNotFound
	CodeConflict     = http.StatusConflict
	CodeInternal     = http.StatusInternalServerError
)

// Sentinel kinds for faults that carry no explicit code.
// Wrap them with fmt.Errorf("...: %w", ErrX) so Classify can find them.
var (
	ErrNilDereference   = errors.New("nil dereference")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Frame is the origin of a fault: the function and source line that raised it.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Fault is an application-raised error with an explicit code and a message.
type Fault struct {
	Code    int
	Message string
	Err     error
	Frame   *Frame
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Fault) Unwrap() error { return f.Err }

// New returns a Fault with the given code and message, recording the caller's frame.
func New(code int, message string) *Fault {
	return &Fault{Code: code, Message: message, Frame: callerFrame(2)}
}

// Wrap returns a Fault that keeps err as its cause.
func Wrap(err error, code int, message string) *Fault {
	return &Fault{Code: code, Message: message, Err: err, Frame: callerFrame(2)}
}

func BadRequest(message string) *Fault {
	return &Fault{Code: CodeBadRequest, Message: message, Frame: callerFrame(2)}
}

func Unauthorized(message string) *Fault {
	return &Fault{Code: CodeUnauthorized, Message: message, Frame: callerFrame(2)}
}

func NotFound(message string) *Fault {
	return &Fault{Code: CodeNotFound, Message: message, Frame: callerFrame(2)}
}

func Conflict(message string) *Fault {
	return &Fault{Code: CodeConflict, Message: message, Frame: callerFrame(2)}
}

// As returns the outermost *Fault in err's chain.
func As(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// HTTPStatus maps err to the response status.
// Explicit codes in the 4xx/5xx range are used as-is; other explicit codes are
// client errors; everything else is a 500.
func HTTPStatus(err error) int {
	f, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if f.Code >= 400 && f.Code <= 599 {
		return f.Code
	}
	return http.StatusBadRequest
}

// PublicMessage returns the message that may be sent to the caller.
func PublicMessage(err error) string {
	if f, ok := As(err); ok {
		return f.Message
	}
	return "internal server error"
}

// callerFrame resolves the frame skip levels above callerFrame itself.
func callerFrame(skip int) *Frame {
	pcs := make([]uintptr, 1)
	if runtime.Callers(skip+1, pcs) == 0 {
		return nil
	}
	fr, _ := runtime.CallersFrames(pcs).Next()
	if fr.Function == "" {
		return nil
	}
	return &Frame{Function: fr.Function, File: fr.File, Line: fr.Line}
}
