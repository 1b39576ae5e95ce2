// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package region

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTokenCount is returned (wrapped in a ParseError) when a
// comma-separated field has the wrong number of components.
var ErrTokenCount = errors.New("wrong number of components")

// ErrNotInteger is returned when a component that must be an integer
// is not one, including when it has trailing characters.
var ErrNotInteger = errors.New("not an integer")

// ErrNotNumber is returned when a component that must be a finite
// floating-point number is not one.
var ErrNotNumber = errors.New("not a finite number")

// ErrNegative is returned when a component that must be non-negative
// is negative.
var ErrNegative = errors.New("must not be negative")

// ErrNotPositive is returned when an identifier is zero or negative.
var ErrNotPositive = errors.New("must be positive")

// ErrColor is returned when a channel color is not exactly six
// hexadecimal digits.
var ErrColor = errors.New("color must be six hexadecimal digits")

// ErrUnknownMode is returned by ParseMode for anything but "c" or "g".
var ErrUnknownMode = errors.New("unknown rendering mode")

// ErrUnknownFormat is returned by ParseFormat for an unsupported
// output format.
var ErrUnknownFormat = errors.New("unknown output format")

// ErrSeparator is returned when a channel entry is missing one of its
// '|', '$' or ':' separators.
type ErrSeparator struct {
	Separator string
}

func (e ErrSeparator) Error() string {
	return fmt.Sprintf("missing %q separator", e.Separator)
}

// ParseError is returned by the grammar functions when a single query
// string field cannot be parsed.
type ParseError struct {
	// Field names the query parameter, e.g. "tile".
	Field string

	// Value is the offending text.  For channel lists this is the
	// single entry that failed, not the whole parameter.
	Value string

	// Err describes what was wrong with Value.
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e *ParseError) HTTPStatus() int {
	return http.StatusBadRequest
}

// ContextBuildError is returned when a render context cannot be built
// from a set of query parameters.  This happens if a required field
// is missing, if tile and region are both present or both absent, if
// parallel per-channel fields disagree in length, or if any single
// field fails to parse, in which case Err is the *ParseError.
type ContextBuildError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ContextBuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot build render context: %v", e.Err)
	}
	return fmt.Sprintf("cannot build render context: %s: %s", e.Field, e.Reason)
}

func (e *ContextBuildError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e *ContextBuildError) HTTPStatus() int {
	return http.StatusBadRequest
}

func parseError(field, value string, err error) error {
	return &ParseError{Field: field, Value: value, Err: err}
}

// buildError wraps a grammar failure for a named field.
func buildError(field string, err error) error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return &ContextBuildError{Field: field, Reason: reason, Err: err}
}
