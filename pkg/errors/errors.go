// Package errors provides the structured error type shared by all repo-search
// packages.
//
// Every failure that ends a run is classified by a [Kind]:
//   - CONFIGURATION: a required input is missing or invalid (no network activity happened)
//   - TRANSPORT: the request could not be sent or no response was received
//   - PROTOCOL: the server answered with a non-success status
//   - DECODE: the response body does not have the expected shape
//
// # Usage
//
//	err := errors.New(errors.KindConfiguration, "search string is required")
//	if errors.Is(err, errors.KindProtocol) {
//	    // Handle rejected request
//	}
//
//	err := errors.Wrap(errors.KindTransport, origErr, "send request")
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents a machine-readable error classification.
type Kind string

// Error kinds.
const (
	KindConfiguration Kind = "CONFIGURATION"
	KindTransport     Kind = "TRANSPORT"
	KindProtocol      Kind = "PROTOCOL"
	KindDecode        Kind = "DECODE"
)

// maxBodyLen bounds how much of a response body is kept for diagnosis.
const maxBodyLen = 512

// Error is a classified error with optional request context.
type Error struct {
	Kind    Kind   // Error classification
	Message string // Human-readable message
	Field   string // Configuration field (CONFIGURATION only)

	// Page is the page number being fetched when the error occurred (0 if none).
	Page int

	// StatusCode and Body are set for PROTOCOL errors.
	StatusCode int
	Body       string

	Cause error // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", strings.ToLower(string(e.Kind)))
	if e.Page > 0 {
		fmt.Fprintf(&b, " (page %d)", e.Page)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Missing returns the CONFIGURATION error for an absent required field.
func Missing(field string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: field + " is required",
		Field:   field,
	}
}

// WithPage sets the page number and returns e.
func (e *Error) WithPage(page int) *Error {
	e.Page = page
	return e
}

// WithResponse records the status code and a truncated body and returns e.
func (e *Error) WithResponse(status int, body []byte) *Error {
	e.StatusCode = status
	e.Body = truncate(strings.TrimSpace(string(body)), maxBodyLen)
	return e
}

// Is reports whether err has the given kind.
// It unwraps the error chain looking for an *Error with a matching kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the kind from an error, if available.
// Returns empty string if the chain holds no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
