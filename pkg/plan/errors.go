// SPDX-License-Identifier: MPL-2.0

package plan

import "fmt"

// ConfigurationError reports a missing or invalid Spec field. It is
// raised before any pipeline work starts and is never retried.
type ConfigurationError struct {
	// Field names the offending Spec field or segment field.
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
