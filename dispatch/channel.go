// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package dispatch sends render contexts to rendering workers and
// turns their replies into HTTP outcomes.
//
// Workers are reached through a Channel, which delivers an encoded
// request to exactly one worker listening on an address and returns
// that worker's reply.  A worker reports a failure it wants the
// client to see by returning a ReplyError carrying an HTTP status
// code; any other failure, including no reply within the dispatch
// timeout, is reported to the client as 404 Not Found.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Well-known worker addresses.
const (
	// ImageRegionAddress receives encoded region.ImageRegionCtx
	// requests.
	ImageRegionAddress = "omero.render_image_region"

	// ShapeMaskAddress receives encoded region.ShapeMaskCtx
	// requests.
	ShapeMaskAddress = "omero.render_shape_mask"
)

// ErrClosed is returned when using a Bus after Close.
var ErrClosed = errors.New("bus is closed")

// Channel is a request/reply transport to rendering workers.
type Channel interface {
	// Request sends body to one worker listening on address and
	// waits for its reply.  If the worker fails with a code, the
	// returned error is a ReplyError.  Request should give up when
	// ctx is cancelled.
	Request(ctx context.Context, address string, body []byte) ([]byte, error)
}

// Handler processes one request body and returns the reply body.
// Returning a ReplyError sends a coded failure to the requester.
type Handler func(ctx context.Context, body []byte) ([]byte, error)

// Subscription is an active registration of a Handler.
type Subscription interface {
	// Unsubscribe stops delivering requests to the handler.
	Unsubscribe() error
}

// Bus is a Channel that workers can also listen on.  If several
// handlers are registered on one address, each request goes to only
// one of them.
type Bus interface {
	Channel

	// Handle registers handler to receive requests sent to
	// address.
	Handle(address string, handler Handler) (Subscription, error)

	// Close releases the bus and any connections it holds.
	Close() error
}

// ReplyError is a failure reported by a worker with an HTTP status
// code, for instance 403 when the session does not permit access to
// an image.
type ReplyError struct {
	Code    int
	Message string
}

// Fail returns a ReplyError with a formatted message.
func Fail(code int, format string, args ...interface{}) error {
	return ReplyError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e ReplyError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("worker failed with code %d", e.Code)
	}
	return fmt.Sprintf("worker failed with code %d: %s", e.Code, e.Message)
}

// HTTPStatus returns the worker's failure code.
func (e ReplyError) HTTPStatus() int {
	return e.Code
}

// ErrNoHandlers is returned by a Bus when nothing is listening on an
// address.
type ErrNoHandlers struct {
	Address string
}

func (e ErrNoHandlers) Error() string {
	return fmt.Sprintf("no handlers for address %q", e.Address)
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNoHandlers) HTTPStatus() int {
	return http.StatusNotFound
}
