package core

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind classifies failures so callers can branch on what went wrong
// rather than on message text.
type ErrorKind int

const (
	// KindConfiguration is bad, conflicting or missing user input.
	KindConfiguration ErrorKind = iota + 1
	// KindUnsupportedFeature is a recognized capability that is deliberately
	// not available in this build mode or for this backend.
	KindUnsupportedFeature
	// KindNotImplementedForBackend marks an adapter operation that has no
	// meaning for the active backend.
	KindNotImplementedForBackend
	// KindInvalidOperation is template or function misuse.
	KindInvalidOperation
	// KindInternal is an invariant violation. These indicate a bug.
	KindInternal
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnsupportedFeature:
		return "unsupported feature"
	case KindNotImplementedForBackend:
		return "not implemented"
	case KindInvalidOperation:
		return "invalid operation"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error value produced by every leapforge package.
type Error struct {
	Kind ErrorKind
	// Op is the operation that failed, e.g. "get_table_options". Optional.
	Op      string
	Message string
	// Err is an underlying cause. For internal errors it carries a stack trace.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil && e.Kind != KindInternal {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Format prints the stack trace of internal errors with %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') && e.Err != nil {
		_, _ = fmt.Fprintf(s, "%s\n%+v", e.Error(), e.Err)
		return
	}
	_, _ = fmt.Fprint(s, e.Error())
}

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError builds a KindConfiguration error.
func ConfigurationError(format string, args ...any) error {
	return NewError(KindConfiguration, format, args...)
}

// UnsupportedFeatureError builds a KindUnsupportedFeature error.
func UnsupportedFeatureError(format string, args ...any) error {
	return NewError(KindUnsupportedFeature, format, args...)
}

// InvalidOperationError builds a KindInvalidOperation error.
func InvalidOperationError(format string, args ...any) error {
	return NewError(KindInvalidOperation, format, args...)
}

// InternalError builds a KindInternal error carrying the stack of the caller.
func InternalError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Kind: KindInternal, Message: msg, Err: pkgerrors.New(msg)}
}

// WrapInternal marks err as an invariant violation, keeping it as the cause.
func WrapInternal(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Message: message + ": " + err.Error(), Err: pkgerrors.WithStack(err)}
}

// NotImplemented reports that op is not available for the active backend.
// message names the backends that do support it.
func NotImplemented(op, message string) error {
	return &Error{Kind: KindNotImplementedForBackend, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsNotImplemented reports whether err signals an operation the backend
// does not provide.
func IsNotImplemented(err error) bool {
	return IsKind(err, KindNotImplementedForBackend)
}
