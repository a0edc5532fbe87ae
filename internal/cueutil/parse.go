// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the shared CUE parsing flow used by the build
// file and application config loaders: compile the embedded schema,
// compile the user data, unify, validate, and decode.
package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxFileSize caps user-supplied CUE files. Build files and
// configs are small; anything beyond this is rejected before parsing.
const DefaultMaxFileSize int64 = 1 << 20

// Decode validates data against the named definition in schema and
// decodes it into T. filename appears in error messages.
func Decode[T any](schema, data []byte, schemaPath, filename string) (*T, error) {
	unified, err := unify(schema, data, schemaPath, filename)
	if err != nil {
		return nil, err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, FormatError(err, filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}
	return &result, nil
}

// DecodeMap is Decode for optional-field documents consumed as a plain
// map (viper merging). Validation does not require concrete values.
func DecodeMap(schema, data []byte, schemaPath, filename string) (map[string]any, error) {
	unified, err := unify(schema, data, schemaPath, filename)
	if err != nil {
		return nil, err
	}
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, FormatError(err, filename)
	}

	var result map[string]any
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}
	return result, nil
}

func unify(schema, data []byte, schemaPath, filename string) (cue.Value, error) {
	if filename == "" {
		filename = "<input>"
	}
	if err := CheckFileSize(data, DefaultMaxFileSize, filename); err != nil {
		return cue.Value{}, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return cue.Value{}, FormatError(userValue.Err(), filename)
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}
	return schemaRoot.Unify(userValue), nil
}

// CheckFileSize rejects data larger than maxSize.
func CheckFileSize(data []byte, maxSize int64, filename string) error {
	if int64(len(data)) > maxSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes",
			filename, len(data), maxSize)
	}
	return nil
}
