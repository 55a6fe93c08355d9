// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// DefaultMaxFileSize is the upper bound on CUE input size (1 MB). Federation
// config files are small; anything larger is almost certainly a mistake and
// would only slow the CUE evaluator down.
const DefaultMaxFileSize int64 = 1 << 20

type (
	// Option configures a Decode call.
	Option func(*options)

	options struct {
		filename    string
		maxFileSize int64
		concrete    bool
	}

	// Result contains the outcome of a successful Decode.
	Result[T any] struct {
		// Value is the decoded Go struct.
		Value *T

		// Unified is the unified CUE value, available for callers that need
		// to extract extra metadata beyond the decoded struct.
		Unified cue.Value
	}
)

// WithFilename sets the filename reported in error messages.
func WithFilename(name string) Option {
	return func(o *options) { o.filename = name }
}

// WithMaxFileSize overrides the input size cap.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithConcrete requires all fields to have concrete values after unification.
// Leave unset for schemas with optional fields.
func WithConcrete() Option {
	return func(o *options) { o.concrete = true }
}

// Decode runs the schema-unify-decode flow: compile schema, compile data,
// unify against the named root definition, validate, and decode into T.
// Errors carry the file path and the CUE path of the offending field.
func Decode[T any](schema, data []byte, rootDef string, opts ...Option) (*Result[T], error) {
	o := options{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(&o)
	}

	filename := o.filename
	if filename == "" {
		filename = "<input>"
	}

	if err := CheckFileSize(data, o.maxFileSize, filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}

	root := schemaValue.LookupPath(cue.ParsePath(rootDef))
	if root.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", rootDef, root.Err())
	}

	unified := root.Unify(userValue)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return nil, FormatError(err, filename)
	}

	var value T
	if err := unified.Decode(&value); err != nil {
		return nil, FormatError(err, filename)
	}

	return &Result[T]{Value: &value, Unified: unified}, nil
}

// DecodeString is a convenience wrapper for schemas embedded as strings.
func DecodeString[T any](schema string, data []byte, rootDef string, opts ...Option) (*Result[T], error) {
	return Decode[T]([]byte(schema), data, rootDef, opts...)
}
