// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package dispatch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"github.com/omero-ms/go-imageregion/region"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout is how long Dispatch waits for a reply if the
// Dispatcher does not say otherwise.
const DefaultTimeout = 60 * time.Second

// ErrTimeout is the failure recorded when no reply arrives in time.
var ErrTimeout = errors.New("timed out waiting for a worker reply")

// Result is the outcome of one dispatch.  On success StatusCode is
// 200 and Body is the worker's reply, unmodified.  On failure Body
// is nil and Err says what happened.
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Err         error
}

// OK returns true if the worker produced a reply.
func (r Result) OK() bool {
	return r.Err == nil
}

// Observer is told about every completed dispatch.
type Observer func(address string, result Result, elapsed time.Duration)

// Dispatcher sends render contexts over a Channel with a bounded
// wait.  A zero Dispatcher is not usable; Channel is required.
type Dispatcher struct {
	// Channel reaches the rendering workers.
	Channel Channel

	// Timeout is the longest Dispatch waits for a reply.  If
	// unset, uses DefaultTimeout.
	Timeout time.Duration

	// Clock is the time source for the timeout.  Only test code
	// should need to set this.
	Clock clock.Clock

	// Observer, if set, is called after every dispatch.
	Observer Observer

	// Logger receives debug output.  If unset, uses the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

type reply struct {
	body []byte
	err  error
}

// Dispatch encodes r, sends it to address, and waits for the reply,
// the timeout, or ctx to finish, whichever comes first.
func (d *Dispatcher) Dispatch(ctx context.Context, address string, r region.Renderable) Result {
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	start := clk.Now()

	var result Result
	body, err := region.Encode(r)
	if err == nil {
		body, err = d.send(ctx, clk, timeout, address, body)
	}
	if err == nil {
		result = Result{
			StatusCode:  http.StatusOK,
			ContentType: r.ContentType(),
			Body:        body,
		}
	} else {
		result = Result{StatusCode: StatusFor(err), Err: err}
	}

	elapsed := clk.Now().Sub(start)
	fields := logrus.Fields{
		"address": address,
		"status":  result.StatusCode,
		"elapsed": elapsed,
	}
	if result.OK() {
		fields["size"] = humanize.Bytes(uint64(len(result.Body)))
		logger.WithFields(fields).Debug("dispatched")
	} else {
		logger.WithFields(fields).WithError(result.Err).Debug("dispatch failed")
	}
	if d.Observer != nil {
		d.Observer(address, result, elapsed)
	}
	return result
}

func (d *Dispatcher) send(ctx context.Context, clk clock.Clock, timeout time.Duration, address string, body []byte) ([]byte, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so that a late reply does not strand the goroutine
	replies := make(chan reply, 1)
	go func() {
		body, err := d.Channel.Request(reqCtx, address, body)
		replies <- reply{body, err}
	}()

	select {
	case rep := <-replies:
		return rep.body, rep.err
	case <-clk.After(timeout):
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StatusFor returns the HTTP status for a dispatch failure.  A
// ReplyError carries its own code; everything else is 404 Not Found.
// Codes that cannot be written as an HTTP status become 500.
func StatusFor(err error) int {
	var rerr ReplyError
	if errors.As(err, &rerr) {
		if rerr.Code < 100 || rerr.Code > 999 {
			return http.StatusInternalServerError
		}
		return rerr.Code
	}
	return http.StatusNotFound
}
