package errors

import (
	"fmt"
	"strings"
)

// SchemaError reports required canonical columns that could not be resolved
// from an ingestion file header. It is fatal for the whole batch.
type SchemaError struct {
	Missing []string
	Header  []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseError reports a single field that could not be interpreted.
// During ingestion it is recovered per row.
type ParseError struct {
	Field string
	Value string
	Cause error
}

// NewParseError creates a parse error for field with the offending raw value
func NewParseError(field, value string, cause error) *ParseError {
	return &ParseError{Field: field, Value: value, Cause: cause}
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("cannot parse %s %q", e.Field, e.Value)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// InsufficientDataError is returned when an aggregation has no price history to work on.
// No writes are performed when it is returned.
type InsufficientDataError struct {
	InstrumentID string
	Have         int
	Need         int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for instrument %s: have %d bars, need at least %d",
		e.InstrumentID, e.Have, e.Need)
}

// PersistenceError wraps any failure of the underlying storage layer
type PersistenceError struct {
	Op    string
	Cause error
}

// NewPersistenceError wraps cause as a persistence failure of op.
// A nil cause yields nil so it can wrap store calls directly.
func NewPersistenceError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &PersistenceError{Op: op, Cause: cause}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
