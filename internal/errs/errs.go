// Package errs defines the error kinds surfaced by ingestion, search and reporting
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an error for recovery decisions
type Kind string

const (
	KindMalformedRecord     Kind = "malformed_source_record" // One raw item failed normalization; skip it
	KindFetchTimeout        Kind = "fetch_timeout"           // A source did not answer in time
	KindFetchUnavailable    Kind = "fetch_unavailable"       // A source is unreachable or refused
	KindStorageUnavailable  Kind = "storage_unavailable"     // The registry cannot be reached
	KindNotificationFailure Kind = "notification_failure"    // Downstream notification failed
	KindInvalid             Kind = "invalid_input"           // Caller input failed validation
	KindNotFound            Kind = "not_found"
)

// Error carries a Kind plus the source or operation it happened in
type Error struct {
	Kind   Kind
	Source string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	var prefix string
	switch {
	case e.Source != "" && e.Op != "":
		prefix = e.Source + ": " + e.Op
	case e.Source != "":
		prefix = e.Source
	default:
		prefix = e.Op
	}
	if prefix == "" {
		prefix = string(e.Kind)
	}
	if e.Err == nil {
		return prefix + ": " + string(e.Kind)
	}
	return prefix + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Malformed marks a raw record that could not be normalized
func Malformed(source string, err error) error {
	return &Error{Kind: KindMalformedRecord, Source: source, Err: err}
}

// Malformedf is Malformed with a formatted message
func Malformedf(source, format string, args ...any) error {
	return Malformed(source, fmt.Errorf(format, args...))
}

// Timeout marks a source fetch that exceeded its deadline
func Timeout(source string, err error) error {
	return &Error{Kind: KindFetchTimeout, Source: source, Err: err}
}

// Unavailable marks a source that could not be fetched
func Unavailable(source string, err error) error {
	return &Error{Kind: KindFetchUnavailable, Source: source, Err: err}
}

// Storage marks a registry failure during op
func Storage(op string, err error) error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

// Notification marks a failed downstream notification
func Notification(err error) error {
	return &Error{Kind: KindNotificationFailure, Op: "notify", Err: err}
}

// Invalid marks caller input rejected by validation
func Invalid(field, msg string) error {
	return &Error{Kind: KindInvalid, Op: field, Err: errors.New(msg)}
}

// NotFound marks a missing entity
func NotFound(op string) error {
	return &Error{Kind: KindNotFound, Op: op}
}

// FromFetch classifies a fetch error into FetchTimeout or FetchUnavailable.
// Errors that already carry a kind are returned as-is.
func FromFetch(source string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(source, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout(source, err)
	}
	return Unavailable(source, err)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain carries kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
