// Package axerr is the emulator's uniform error type: a message, optional
// detail, optional wrapped cause, optional call-stack/trace/stack-dump
// strings, and a "normal finish" sentinel the execution loop uses to tell
// a clean program exit from a real fault.
package axerr

import "fmt"

// Error is the emulator's error value. Construct with New or Errorf; refine
// with WithDetail; mark with EndExecution when a fault is in fact a clean
// program termination.
type Error struct {
	message    string
	detail     string
	callStack  string
	trace      string
	stackDump  string
	normal     bool
	cause      error
}

// New builds an Error carrying just a message.
func New(message string) *Error {
	return &Error{message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(format string, args ...any) *Error {
	return &Error{message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error carrying message plus a wrapped cause. A native
// embedder leaves the cause empty; a host bridge can hang a foreign error
// here without changing how Error() renders.
func Wrap(cause error, message string) *Error {
	return &Error{message: message, cause: cause}
}

// WithDetail returns a new Error in which each non-empty argument replaces
// the corresponding field; an empty argument keeps the value already set
// on e. Mirrors AxError::add_detail.
func (e *Error) WithDetail(detail, callStack, trace, stackDump string) *Error {
	n := *e
	if detail != "" {
		n.detail = detail
	}
	if callStack != "" {
		n.callStack = callStack
	}
	if trace != "" {
		n.trace = trace
	}
	if stackDump != "" {
		n.stackDump = stackDump
	}
	return &n
}

// EndExecution returns a copy of e flagged as signaling a normal finish,
// used by the execution loop to distinguish intentional termination (RET
// past the bottom of the stack, a process-exit equivalent) from a real
// fault that should propagate to the caller.
func (e *Error) EndExecution() *Error {
	n := *e
	n.normal = true
	return &n
}

// NormalFinish reports whether e signals a clean program termination
// rather than a fault.
func (e *Error) NormalFinish() bool {
	return e != nil && e.normal
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Error renders detail, message, wrapped cause, call-stack, stack-dump and
// trace sections in that order; the call-stack and trace sections carry a
// label, the others are rendered as-is. An empty render means every
// field was left unset, which is always a programming bug.
func (e *Error) Error() string {
	s := ""
	if e.detail != "" {
		s += e.detail + "\n"
	}
	if e.message != "" {
		s += e.message + "\n"
	}
	if e.cause != nil {
		s += e.cause.Error() + "\n"
	}
	if e.callStack != "" {
		s += "Call stack: \n" + e.callStack + "\n"
	}
	if e.stackDump != "" {
		s += e.stackDump + "\n"
	}
	if e.trace != "" {
		s += "Trace: \n" + e.trace + "\n"
	}
	if s == "" {
		panic("axerr: empty error")
	}
	return s
}
