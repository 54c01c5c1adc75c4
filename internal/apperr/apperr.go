// Package apperr defines the fixed error taxonomy the coordinator and its
// collaborators use to decide whether a failure is retryable, countable,
// or fatal to the whole run.
package apperr

import "fmt"

// Kind classifies an error the way the coordinator needs to act on it.
type Kind string

const (
	// Config marks an invalid or missing configuration value. Fatal at
	// startup; never seen by a running scan.
	Config Kind = "CONFIG_ERROR"
	// Store marks a persistence failure. One scan result may be lost,
	// the scan continues.
	Store Kind = "STORE_ERROR"
	// Net marks a connect/read/timeout failure on a probe attempt.
	Net Kind = "NET_ERROR"
	// Protocol marks a malformed varint, truncated read, or invalid JSON.
	// Not retried; the caller falls through to the next protocol version.
	Protocol Kind = "PROTOCOL_ERROR"
	// Blacklisted is not a failure; it is accounted separately from errors.
	Blacklisted Kind = "BLACKLISTED"
	// Observer marks a panic/error raised by a registered observer
	// callback. Logged at debug, never propagated.
	Observer Kind = "OBSERVER_ERROR"
)

// Error wraps an underlying cause with a Kind and a short message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if e, ok := err.(*Error); ok {
		ae = e
	} else {
		return false
	}
	return ae.Kind == kind
}

// NewConfig, NewProtocol and the Wrap* helpers save call sites from
// spelling out the Kind constant for the taxonomy's most common members.
func NewConfig(msg string) *Error                { return New(Config, msg) }
func NewProtocol(msg string) *Error              { return New(Protocol, msg) }
func WrapConfig(msg string, err error) *Error    { return Wrap(Config, msg, err) }
func WrapStore(msg string, err error) *Error     { return Wrap(Store, msg, err) }
func WrapNet(msg string, err error) *Error       { return Wrap(Net, msg, err) }
func WrapProtocol(msg string, err error) *Error  { return Wrap(Protocol, msg, err) }
