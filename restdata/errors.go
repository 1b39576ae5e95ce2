// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/omero-ms/go-imageregion/region"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrUnavailable is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 503 Service
// Unavailable error.
type ErrUnavailable struct {
	Err error
}

func (e ErrUnavailable) Error() string {
	return e.Err.Error()
}

func (e ErrUnavailable) Unwrap() error {
	return e.Err
}

// HTTPStatus returns a fixed 503 Service Unavailable error code.
func (e ErrUnavailable) HTTPStatus() int {
	return http.StatusServiceUnavailable
}

// Status returns the HTTP status code for an error, or 500 Internal
// Server Error if it does not carry one.
func Status(err error) int {
	var status ErrorStatus
	if errors.As(err, &status) {
		return status.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// FromError populates an ErrorResponse to fill in its fields based
// on an error value.  This remaps the well-known render context errors
// to specific e.Error codes.
func (e *ErrorResponse) FromError(err error) {
	e.Message = err.Error()
	var cerr *region.ContextBuildError
	var perr *region.ParseError
	switch et := err.(type) {
	case ErrNotFound:
		// Discard this wrapper and return the embedded error
		e.FromError(et.Err)
	case ErrBadRequest:
		e.FromError(et.Err)
	case ErrUnavailable:
		e.FromError(et.Err)
		e.Error = "unavailable"
	default:
		if errors.As(err, &cerr) {
			e.Error = "ContextBuildError"
			e.Field = cerr.Field
			e.Message = cerr.Reason
		}
		if errors.As(err, &perr) {
			e.Value = perr.Value
		}
	}
}

// ToError converts e back to a render context error, if that is
// possible.  If not, returns a plain error with e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ContextBuildError":
		return &region.ContextBuildError{Field: e.Field, Reason: e.Message}
	case "unavailable":
		return ErrUnavailable{Err: errors.New(e.Message)}
	default:
		return errors.New(e.Message)
	}
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recovered(); obj != nil {
//             resp := restdata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//    }
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	len := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:len])
}
