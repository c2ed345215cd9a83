package model

import (
	"errors"
	"fmt"
	"strings"
)

// NoIndex marks a ValidationError that does not point into a list.
const NoIndex = -1

// ValidationError represents one rule violation in invoice input.
// Path is the structured location (e.g. "lineItems[2].vatRate"); Index is the
// position inside the enclosing list or NoIndex.
type ValidationError struct {
	Path    string
	Index   int
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Path, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Path, e.Message, e.Rule)
}

// NewValidationError creates a validation error for a top-level field
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Path:    field,
		Index:   NoIndex,
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// NewItemValidationError creates a validation error for a field of the
// index-th element of list. The message carries the index in brackets.
func NewItemValidationError(list string, index int, field string, value interface{}, rule, message string) *ValidationError {
	path := fmt.Sprintf("%s[%d]", list, index)
	if field != "" {
		path += "." + field
	}
	return &ValidationError{
		Path:    path,
		Index:   index,
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: fmt.Sprintf("line item [%d]: %s", index, message),
	}
}

// ValidationErrors collects every violation found in one validation pass.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	switch len(v) {
	case 0:
		return "validation failed"
	case 1:
		return v[0].Error()
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(v), strings.Join(msgs, "; "))
}

// Unwrap exposes each violation to errors.Is / errors.As.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// Add appends err when it is non-nil.
func (v *ValidationErrors) Add(err *ValidationError) {
	if err != nil {
		*v = append(*v, err)
	}
}

// Err returns nil for an empty collection.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// AsValidationErrors flattens err into its validation errors, if any.
func AsValidationErrors(err error) ValidationErrors {
	var many ValidationErrors
	if errors.As(err, &many) {
		return many
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return ValidationErrors{one}
	}
	return nil
}

// EncodingError represents a value that cannot be represented in the
// target encoding (a QR record longer than its one-byte length field).
type EncodingError struct {
	Tag     byte
	Field   string
	Length  int
	Message string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding failed on tag %d (%s): %s (length=%d)", e.Tag, e.Field, e.Message, e.Length)
}

// NewEncodingError creates a new encoding error
func NewEncodingError(tag byte, field string, length int, message string) *EncodingError {
	return &EncodingError{
		Tag:     tag,
		Field:   field,
		Length:  length,
		Message: message,
	}
}

// ParseError represents a failure reading an existing invoice document
type ParseError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse %s: %s (%v)", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse %s: %s", e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(field, message string, cause error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}
