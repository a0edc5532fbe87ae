// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

// ActionableError carries enough context to tell the user what failed
// and what to do about it: the operation attempted, the file or path
// involved, and remediation hints. Built through ErrorContext:
//
//	return issue.NewErrorContext().
//		WithOperation("load build file").
//		WithResource("./forge.cue").
//		WithSuggestion("Run 'modforge init' to create one").
//		Wrap(err).
//		BuildError()
type ActionableError struct {
	// Operation is a verb phrase: "load build file", "install module".
	Operation string

	// Resource is the file, path, or entity involved, when there is one.
	Resource string

	// Suggestions are remediation hints printed under the message.
	Suggestions []string

	// Cause is the underlying error, reachable via errors.Is/As.
	Cause error
}

// Error returns the one-line form: failed to <operation>[: <resource>][: <cause>].
func (e *ActionableError) Error() string {
	var msg strings.Builder

	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)

	if e.Resource != "" {
		msg.WriteString(": ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}

	return msg.String()
}

func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message with its suggestions as bullet lines.
// Verbose mode appends the full unwrapped error chain, numbered.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder
	msg.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		for depth := 1; err != nil; depth++ {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
		}
	}

	return msg.String()
}

// ErrorContext accumulates ActionableError fields. It can be prepared
// ahead of the fallible call and finished once the error is in hand:
//
//	ctx := issue.NewErrorContext().
//		WithOperation("parse config").
//		WithResource(cfgPath)
//	...
//	return ctx.WithSuggestion("Check the CUE syntax").Wrap(err).BuildError()
type ErrorContext struct {
	operation   string
	resource    string
	suggestions []string
	cause       error
}

// NewErrorContext returns an empty builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WithOperation sets the operation verb phrase. Required.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithResource sets the file, path, or entity involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.resource = res
	return c
}

// WithSuggestion appends one remediation hint.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// Wrap records the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build assembles the ActionableError, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}

	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: c.suggestions,
		Cause:       c.cause,
	}
}

// BuildError is Build typed as error, for use directly in returns. A
// nil *ActionableError in an error interface would compare non-nil, so
// the nil case is mapped to a true nil.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}
