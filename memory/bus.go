// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// dispatch.Bus.  Requests are delivered to handlers in the same
// process; there is no persistence and no sharing between processes.
// The entire bus is behind a single global semaphore, which is only
// held while choosing a handler, never while a handler runs.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of
// higher-level components, and for running a gateway and its
// rendering workers as a single process.
package memory

import (
	"context"
	"sync"

	"github.com/omero-ms/go-imageregion/dispatch"
)

// New creates a new bus that operates purely in memory.
func New() dispatch.Bus {
	return &memBus{addresses: make(map[string]*address)}
}

type memBus struct {
	addresses map[string]*address
	closed    bool
	sem       sync.Mutex
}

// address holds the handlers registered on one address.  Requests
// go to the handlers in turn.
type address struct {
	name          string
	subscriptions []*subscription
	next          int
}

type subscription struct {
	bus     *memBus
	address *address
	handler dispatch.Handler
}

type reply struct {
	body []byte
	err  error
}

func (b *memBus) Handle(name string, handler dispatch.Handler) (dispatch.Subscription, error) {
	b.sem.Lock()
	defer b.sem.Unlock()

	if b.closed {
		return nil, dispatch.ErrClosed
	}
	addr := b.addresses[name]
	if addr == nil {
		addr = &address{name: name}
		b.addresses[name] = addr
	}
	sub := &subscription{bus: b, address: addr, handler: handler}
	addr.subscriptions = append(addr.subscriptions, sub)
	return sub, nil
}

// pick chooses the handler for the next request to an address.
func (b *memBus) pick(name string) (dispatch.Handler, error) {
	b.sem.Lock()
	defer b.sem.Unlock()

	if b.closed {
		return nil, dispatch.ErrClosed
	}
	addr := b.addresses[name]
	if addr == nil || len(addr.subscriptions) == 0 {
		return nil, dispatch.ErrNoHandlers{Address: name}
	}
	if addr.next >= len(addr.subscriptions) {
		addr.next = 0
	}
	sub := addr.subscriptions[addr.next]
	addr.next++
	return sub.handler, nil
}

func (b *memBus) Request(ctx context.Context, name string, body []byte) ([]byte, error) {
	handler, err := b.pick(name)
	if err != nil {
		return nil, err
	}

	// Handlers get their own copy of the request, as they would
	// from a network transport
	request := append([]byte(nil), body...)
	replies := make(chan reply, 1)
	go func() {
		body, err := handler(ctx, request)
		replies <- reply{body, err}
	}()

	select {
	case rep := <-replies:
		return rep.body, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *memBus) Close() error {
	b.sem.Lock()
	defer b.sem.Unlock()

	b.closed = true
	b.addresses = make(map[string]*address)
	return nil
}

func (s *subscription) Unsubscribe() error {
	s.bus.sem.Lock()
	defer s.bus.sem.Unlock()

	subs := s.address.subscriptions
	for i, sub := range subs {
		if sub == s {
			s.address.subscriptions = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	return nil
}
