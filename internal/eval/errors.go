// Package eval turns the node graph into terminal condition paths. The
// evaluator appends one predicate per node visit; the resolver runs the
// evaluator over every ancestor chain and memoizes per-node results.
package eval

import (
	"errors"
	"fmt"
)

// Error codes for structured failure reporting. Lowering reuses the same
// shape for its own failures so callers can group by code everywhere.
const (
	CodeConfiguration       = "configuration"
	CodeUnknownBranch       = "unknown_branch"
	CodeUnknownNodeKind     = "unknown_node_kind"
	CodeNotFound            = "not_found"
	CodeCycle               = "cycle"
	CodePlugin              = "plugin"
	CodeUnsupportedLowering = "unsupported_lowering"
	CodeIncompletePath      = "incomplete_path"
)

// Error is the structured error type for evaluation and lowering failures.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Node    string `json:"node,omitempty"` // UID of the node being resolved
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.Node, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a structured error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a structured error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches the UID of the node the failure belongs to.
func (e *Error) WithNode(uid string) *Error {
	e.Node = uid
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// CodeOf extracts the structured code from err, or "" if err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given structured code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
