package apperrors

import "fmt"

// Kind categorizes a pipeline failure.
type Kind string

const (
	KindConnection    Kind = "connection"
	KindAuth          Kind = "auth"
	KindProtocol      Kind = "protocol"
	KindNormalization Kind = "normalization"
	KindTimeout       Kind = "timeout"
	KindConfiguration Kind = "configuration"
)

// Error is a categorized application error. Screening code matches on Kind
// with errors.As to decide whether a failure is per-candidate or fatal.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two errors of the same Kind, so sentinel-style comparisons
// like errors.Is(err, apperrors.Timeout("")) work regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Connection reports a network or TLS level mailbox failure.
func Connection(message string, cause error) *Error {
	return newError(KindConnection, message, cause)
}

// Auth reports rejected mailbox credentials.
func Auth(message string, cause error) *Error {
	return newError(KindAuth, message, cause)
}

// Protocol reports an IMAP command failure after a successful login.
func Protocol(message string, cause error) *Error {
	return newError(KindProtocol, message, cause)
}

// Normalization reports that a document yielded neither an image nor text.
func Normalization(message string, cause error) *Error {
	return newError(KindNormalization, message, cause)
}

// Timeout reports a single AI call exceeding its deadline. It is scoped to
// that invocation; callers continue with the next item.
func Timeout(message string) *Error {
	return newError(KindTimeout, message, nil)
}

// Configuration reports a missing precondition checked before any work starts.
func Configuration(message string) *Error {
	return newError(KindConfiguration, message, nil)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
