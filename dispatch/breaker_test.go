// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package dispatch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

func TestBreakerOpens(t *testing.T) {
	calls := 0
	ch := channelFunc(func(context.Context, string, []byte) ([]byte, error) {
		calls++
		return nil, errors.New("unreachable")
	})
	var transitions []gobreaker.State
	breaker := NewBreaker(ch, BreakerSettings{
		Name:             "test",
		FailureThreshold: 3,
		Timeout:          time.Hour,
		OnStateChange: func(name string, from, to gobreaker.State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, to)
		},
	})

	for i := 0; i < 3; i++ {
		_, err := breaker.Request(context.Background(), "a", nil)
		assert.EqualError(t, err, "unreachable")
	}
	assert.Equal(t, 3, calls)
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := breaker.Request(context.Background(), "a", nil)
	assert.Equal(t, gobreaker.ErrOpenState, err)
	assert.Equal(t, 3, calls)

	// An open breaker is an uncoded failure
	d := &Dispatcher{Channel: breaker}
	result := d.Dispatch(context.Background(), ImageRegionAddress, imageCtx("png"))
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
}

func TestBreakerIgnoresCodedFailures(t *testing.T) {
	calls := 0
	ch := channelFunc(func(context.Context, string, []byte) ([]byte, error) {
		calls++
		return nil, ReplyError{Code: http.StatusForbidden}
	})
	breaker := NewBreaker(ch, BreakerSettings{FailureThreshold: 2})
	for i := 0; i < 10; i++ {
		_, err := breaker.Request(context.Background(), "a", nil)
		assert.Equal(t, ReplyError{Code: http.StatusForbidden}, err)
	}
	assert.Equal(t, 10, calls)
}

func TestBreakerPassesReplies(t *testing.T) {
	ch := channelFunc(func(ctx context.Context, address string, body []byte) ([]byte, error) {
		return append([]byte(address), body...), nil
	})
	breaker := NewBreaker(ch, BreakerSettings{})
	reply, err := breaker.Request(context.Background(), "a", []byte("b"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("ab"), reply)
}
