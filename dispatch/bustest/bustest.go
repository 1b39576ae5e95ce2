// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package bustest provides generic functional tests for the
// dispatch.Bus interface.  A typical bus test needs to wrap Suite to
// create its bus:
//
//     package mybus
//
//     import (
//             "testing"
//             "github.com/omero-ms/go-imageregion/dispatch/bustest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     func TestBus(t *testing.T) {
//             suite.Run(t, &bustest.Suite{NewBus: func() (dispatch.Bus, error) {
//                     return New(), nil
//             }})
//     }
package bustest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic Bus test suite.
type Suite struct {
	suite.Suite

	// NewBus creates a fresh bus for each test.  It is set by
	// importing packages.
	NewBus func() (dispatch.Bus, error)

	// Bus is the bus under test.
	Bus dispatch.Bus
}

// SetupTest creates the bus for a single test.
func (s *Suite) SetupTest() {
	var err error
	s.Bus, err = s.NewBus()
	s.Require().NoError(err)
}

// TearDownTest closes the bus.
func (s *Suite) TearDownTest() {
	if s.Bus != nil {
		_ = s.Bus.Close()
		s.Bus = nil
	}
}

// handle registers a handler and fails the test on error.
func (s *Suite) handle(address string, handler dispatch.Handler) dispatch.Subscription {
	sub, err := s.Bus.Handle(address, handler)
	s.Require().NoError(err)
	return sub
}

func (s *Suite) request(address string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Bus.Request(ctx, address, body)
}

// TestRequestReply checks a simple round trip.
func (s *Suite) TestRequestReply() {
	s.handle("echo", func(ctx context.Context, body []byte) ([]byte, error) {
		return append([]byte("echo:"), body...), nil
	})
	reply, err := s.request("echo", []byte("hello"))
	if s.NoError(err) {
		s.Equal("echo:hello", string(reply))
	}
}

// TestBinaryReply checks that every byte value survives the trip.
func (s *Suite) TestBinaryReply() {
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i)
	}
	s.handle("binary", func(ctx context.Context, body []byte) ([]byte, error) {
		s.Equal(payload[:256], body)
		return payload, nil
	})
	reply, err := s.request("binary", payload[:256])
	if s.NoError(err) {
		s.Equal(payload, reply)
	}
}

// TestEmptyReply checks that an empty reply is not a failure.
func (s *Suite) TestEmptyReply() {
	s.handle("empty", func(ctx context.Context, body []byte) ([]byte, error) {
		return nil, nil
	})
	reply, err := s.request("empty", nil)
	s.NoError(err)
	s.Len(reply, 0)
}

// TestCodedFailure checks that a worker's ReplyError reaches the
// requester with its code and message.
func (s *Suite) TestCodedFailure() {
	s.handle("forbidden", func(ctx context.Context, body []byte) ([]byte, error) {
		return nil, dispatch.Fail(403, "session %s", body)
	})
	_, err := s.request("forbidden", []byte("abc"))
	var rerr dispatch.ReplyError
	if s.True(errors.As(err, &rerr), "%v", err) {
		s.Equal(403, rerr.Code)
		s.Equal("session abc", rerr.Message)
	}
	s.Equal(403, dispatch.StatusFor(err))
}

// TestUncodedFailure checks that other worker failures are still
// failures, but without a code.
func (s *Suite) TestUncodedFailure() {
	s.handle("broken", func(ctx context.Context, body []byte) ([]byte, error) {
		return nil, errors.New("renderer crashed")
	})
	_, err := s.request("broken", nil)
	if s.Error(err) {
		s.Contains(err.Error(), "renderer crashed")
	}
	s.Equal(404, dispatch.StatusFor(err))
}

// TestNoHandlers checks requests to an address nobody listens on.
func (s *Suite) TestNoHandlers() {
	_, err := s.request("nobody.home", nil)
	var nerr dispatch.ErrNoHandlers
	if s.True(errors.As(err, &nerr), "%v", err) {
		s.Equal("nobody.home", nerr.Address)
	}
	s.Equal(404, dispatch.StatusFor(err))
}

// TestUnsubscribe checks that a handler stops receiving requests.
func (s *Suite) TestUnsubscribe() {
	sub := s.handle("short.lived", func(ctx context.Context, body []byte) ([]byte, error) {
		return []byte("here"), nil
	})
	_, err := s.request("short.lived", nil)
	s.NoError(err)

	s.NoError(sub.Unsubscribe())
	_, err = s.request("short.lived", nil)
	s.True(errors.As(err, &dispatch.ErrNoHandlers{}), "%v", err)
}

// TestOneHandlerPerRequest checks that each request is delivered to
// exactly one of several handlers on an address.
func (s *Suite) TestOneHandlerPerRequest() {
	var mutex sync.Mutex
	counts := make(map[string]int)
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.handle("shared", func(ctx context.Context, body []byte) ([]byte, error) {
			mutex.Lock()
			defer mutex.Unlock()
			counts[name]++
			return []byte(name), nil
		})
	}

	const requests = 30
	for i := 0; i < requests; i++ {
		_, err := s.request("shared", []byte(fmt.Sprint(i)))
		s.Require().NoError(err)
	}

	mutex.Lock()
	defer mutex.Unlock()
	total := 0
	for _, n := range counts {
		total += n
	}
	s.Equal(requests, total)
}

// TestConcurrentRequests checks that slow handlers do not serialize
// requests.
func (s *Suite) TestConcurrentRequests() {
	const requests = 4
	arrived := make(chan struct{}, requests)
	release := make(chan struct{})
	s.handle("slow", func(ctx context.Context, body []byte) ([]byte, error) {
		arrived <- struct{}{}
		<-release
		return body, nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := s.request("slow", []byte(fmt.Sprint(i)))
			if err == nil && string(reply) != fmt.Sprint(i) {
				err = fmt.Errorf("request %d got reply %q", i, reply)
			}
			errs <- err
		}(i)
	}

	// Every request reaches a handler before any is released
	timeout := time.After(5 * time.Second)
	for i := 0; i < requests; i++ {
		select {
		case <-arrived:
		case <-timeout:
			close(release)
			s.FailNow("requests were not handled concurrently")
		}
	}
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
}

// TestCancelled checks that a requester can give up waiting.
func (s *Suite) TestCancelled() {
	release := make(chan struct{})
	defer close(release)
	s.handle("stuck", func(ctx context.Context, body []byte) ([]byte, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Bus.Request(ctx, "stuck", nil)
	s.True(errors.Is(err, context.DeadlineExceeded), "%v", err)
}

// TestClosed checks that a closed bus refuses work.
func (s *Suite) TestClosed() {
	s.handle("closing", func(ctx context.Context, body []byte) ([]byte, error) {
		return body, nil
	})
	s.NoError(s.Bus.Close())
	_, err := s.request("closing", nil)
	s.Equal(dispatch.ErrClosed, err)
	_, err = s.Bus.Handle("closing", func(ctx context.Context, body []byte) ([]byte, error) {
		return body, nil
	})
	s.Error(err)
	s.Bus = nil
}
