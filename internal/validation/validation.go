// Package validation implements input schemas and markup sanitization for
// credential, profile, message and search payloads.
package validation

import (
	"strings"

	"github.com/and161185/immob/internal/errs"
)

// Issue is a single violated rule.
type Issue struct {
	Field   string
	Message string
}

// Error is a rejected validation result. It unwraps to errs.ErrValidation.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Field+": "+is.Message)
	}
	return "validation: " + strings.Join(msgs, "; ")
}

func (e *Error) Unwrap() error { return errs.ErrValidation }

// First returns the message of the first issue, or a generic message.
func (e *Error) First() string {
	if len(e.Issues) == 0 {
		return "invalid data"
	}
	return e.Issues[0].Message
}

// Schema checks a candidate value. Parse returns the accepted (possibly
// normalized) value when no issue is reported.
type Schema[T any] interface {
	Parse(v T) (T, []Issue)
}

// Result is either accepted (no issues, Value set) or rejected (Issues set,
// Value zero). A value is never partially accepted.
type Result[T any] struct {
	Value  T
	Issues []Issue
}

// OK reports whether the value was accepted.
func (r Result[T]) OK() bool { return len(r.Issues) == 0 }

// Err returns a *Error for a rejected result and nil otherwise.
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Issues: r.Issues}
}

// ValidateAndSanitize runs schema s over v. It does not sanitize the accepted
// value: callers pick which accepted fields go through Sanitize before use.
func ValidateAndSanitize[T any](s Schema[T], v T) Result[T] {
	out, issues := s.Parse(v)
	if len(issues) > 0 {
		var zero T
		return Result[T]{Value: zero, Issues: issues}
	}
	return Result[T]{Value: out}
}

type rule struct {
	ok  func(string) bool
	msg string
}

// check evaluates every rule in order and reports each failing one.
func check(field, v string, rules ...rule) []Issue {
	var out []Issue
	for _, r := range rules {
		if !r.ok(v) {
			out = append(out, Issue{Field: field, Message: r.msg})
		}
	}
	return out
}
