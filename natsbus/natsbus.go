// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package natsbus implements dispatch.Bus on a NATS connection.
//
// A request is published on a subject named after the worker address
// and carries a CBOR envelope (package cborrpc) around the encoded
// render context.  Workers subscribe in a shared queue group, so each
// request is delivered to exactly one of them, and reply with a
// response envelope holding either the rendered bytes or a failure.
//
// A reply must fit in the server's max_payload, which is 1 MB unless
// configured otherwise; see MaxPayload.  A worker whose reply is too
// large answers with a coded 500 instead.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/omero-ms/go-imageregion/cborrpc"
	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// QueueGroup is the NATS queue group every worker subscribes in.
const QueueGroup = "imageregion.workers"

// DefaultURL is the server URL used when none is given.
const DefaultURL = nats.DefaultURL

// ErrRemote is a worker failure that carried no status code.
type ErrRemote struct {
	Message string
}

func (e ErrRemote) Error() string {
	return "worker failed: " + e.Message
}

// Bus is a dispatch.Bus backed by a NATS connection.
type Bus struct {
	conn   *nats.Conn
	cbor   *codec.CborHandle
	logger logrus.FieldLogger
}

// Connect dials a NATS server and returns a bus using the new
// connection.
func Connect(url string, options ...nats.Option) (*Bus, error) {
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, err
	}
	bus, err := New(conn, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return bus, nil
}

// New creates a bus on an existing connection.  The bus takes
// ownership of conn and closes it in Close.  If logger is nil, uses
// the logrus standard logger.
func New(conn *nats.Conn, logger logrus.FieldLogger) (*Bus, error) {
	cbor, err := cborrpc.NewHandle()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bus{conn: conn, cbor: cbor, logger: logger}, nil
}

// SetLogger replaces the logger used for worker-side failures.
func (b *Bus) SetLogger(logger logrus.FieldLogger) {
	b.logger = logger
}

// Request sends body to one worker on address.
func (b *Bus) Request(ctx context.Context, address string, body []byte) ([]byte, error) {
	req := cborrpc.Request{ID: uuid.NewV4(), Address: address, Body: body}
	data, err := cborrpc.Encode(b.cbor, req)
	if err != nil {
		return nil, err
	}

	msg, err := b.conn.RequestWithContext(ctx, address, data)
	switch {
	case errors.Is(err, nats.ErrNoResponders):
		return nil, dispatch.ErrNoHandlers{Address: address}
	case errors.Is(err, nats.ErrConnectionClosed):
		return nil, dispatch.ErrClosed
	case err != nil:
		return nil, err
	}

	var resp cborrpc.Response
	err = cborrpc.Decode(b.cbor, msg.Data, &resp)
	if err == nil && resp.ID != req.ID {
		err = fmt.Errorf("reply to request %v was for request %v", req.ID, resp.ID)
	}
	if err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, dispatch.ReplyError{Code: resp.Code, Message: resp.Error}
	}
	if resp.Error != "" {
		return nil, ErrRemote{Message: resp.Error}
	}
	return resp.Result, nil
}

// Handle subscribes handler to address in the worker queue group.
// Each request runs in its own goroutine.
func (b *Bus) Handle(address string, handler dispatch.Handler) (dispatch.Subscription, error) {
	sub, err := b.conn.QueueSubscribe(address, QueueGroup, func(msg *nats.Msg) {
		go b.serve(msg, handler)
	})
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil, dispatch.ErrClosed
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// serve runs handler on one request message and sends the reply.
func (b *Bus) serve(msg *nats.Msg, handler dispatch.Handler) {
	logger := b.logger.WithField("subject", msg.Subject)

	var req cborrpc.Request
	if err := cborrpc.Decode(b.cbor, msg.Data, &req); err != nil {
		logger.WithError(err).Warn("dropping undecodable request")
		return
	}
	logger = logger.WithField("request", req.ID.String())

	resp := cborrpc.Response{ID: req.ID}
	result, err := handler(context.Background(), req.Body)
	var rerr dispatch.ReplyError
	switch {
	case err == nil:
		resp.Result = result
	case errors.As(err, &rerr):
		resp.Code = rerr.Code
		resp.Error = rerr.Message
	default:
		resp.Error = err.Error()
	}

	data, err := cborrpc.Encode(b.cbor, resp)
	if err == nil {
		err = msg.Respond(data)
	}
	if errors.Is(err, nats.ErrMaxPayload) {
		// Send a coded failure the caller can see
		logger.WithField("size", len(data)).Warn("reply exceeds server max payload")
		resp = cborrpc.Response{
			ID:    req.ID,
			Code:  http.StatusInternalServerError,
			Error: fmt.Sprintf("reply of %d bytes exceeds server max payload", len(data)),
		}
		data, err = cborrpc.Encode(b.cbor, resp)
		if err == nil {
			err = msg.Respond(data)
		}
	}
	if err != nil {
		logger.WithError(err).Warn("failed to send reply")
	}
}

// Close closes the NATS connection.
func (b *Bus) Close() error {
	b.conn.Close()
	return nil
}
