// Package ragexerr provides the structured error type shared by every
// subsystem of the daemon. It replaces ad-hoc error strings with a typed
// taxonomy so that RPC responses, exit codes, and log lines can be derived
// mechanically from one place.
package ragexerr

import "fmt"

// Kind is the error taxonomy shared by every subsystem. It is the dimension along
// which callers branch (fatal vs local, retryable vs not), not a free-form
// category.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindConfigurationMismatch Kind = "configuration_mismatch"
	KindParseError            Kind = "parse_error"
	KindIOError               Kind = "io_error"
	KindTimeout               Kind = "timeout"
	KindBusy                  Kind = "busy"
	KindNotFound              Kind = "not_found"
	KindInternal              Kind = "internal_error"
)

// Error is the structured error type used across the daemon.
type Error struct {
	Kind       Kind
	Message    string
	Details    map[string]string
	Cause      error
	Retryable  bool
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind, so errors.Is(err, ragexerr.New(KindBusy, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a key/value detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches an actionable remediation message.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Retryable: kind == KindTimeout}
}

// Wrap creates an Error of the given kind from an existing error.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Cause: err, Retryable: kind == KindTimeout}
}

func InvalidInput(message string, cause error) *Error { return wrapOrNew(KindInvalidInput, message, cause) }
func ConfigMismatch(message string, cause error) *Error {
	return wrapOrNew(KindConfigurationMismatch, message, cause)
}
func ParseError(message string, cause error) *Error { return wrapOrNew(KindParseError, message, cause) }
func IOError(message string, cause error) *Error    { return wrapOrNew(KindIOError, message, cause) }
func Timeout(message string) *Error                 { e := New(KindTimeout, message); e.Retryable = true; return e }
func Busy(message string) *Error                     { e := New(KindBusy, message); e.Retryable = true; return e }
func NotFound(message string) *Error                { return New(KindNotFound, message) }
func Internal(message string, cause error) *Error   { return wrapOrNew(KindInternal, message, cause) }

func wrapOrNew(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Retryable
}

// IsFatal reports whether err should abort the affected project rather than
// fail one request (configuration_mismatch).
func IsFatal(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindConfigurationMismatch
}

// KindOf extracts the Kind, or "" if err is not a *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}

// ExitCode maps a Kind to the admin-command exit codes: 0 success
// (handled by callers, not here), 1 generic error, 2 not_found.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if KindOf(err) == KindNotFound {
		return 2
	}
	return 1
}
