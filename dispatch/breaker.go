// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package dispatch

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures NewBreaker.
type BreakerSettings struct {
	// Name identifies the breaker in state change callbacks.
	Name string

	// FailureThreshold is the number of consecutive transport
	// failures that opens the breaker.  If unset, uses 5.
	FailureThreshold uint32

	// MaxRequests is the number of requests let through while
	// half-open.  If unset, uses 1.
	MaxRequests uint32

	// Interval is the cyclic period in the closed state after
	// which failure counts are cleared.  Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open.  If unset, uses
	// 30 seconds.
	Timeout time.Duration

	// OnStateChange, if set, is called whenever the breaker
	// changes state.
	OnStateChange func(name string, from, to gobreaker.State)
}

type breakerChannel struct {
	channel Channel
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewBreaker wraps ch in a circuit breaker.  Transport failures and
// timeouts count against the breaker; a worker's coded ReplyError is
// a successful exchange and does not.  While the breaker is open
// requests fail immediately with gobreaker.ErrOpenState.
func NewBreaker(ch Channel, settings BreakerSettings) Channel {
	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := settings.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	timeout := settings.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: maxRequests,
		Interval:    settings.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: settings.OnStateChange,
		IsSuccessful: func(err error) bool {
			var rerr ReplyError
			return err == nil || errors.As(err, &rerr)
		},
	})
	return &breakerChannel{channel: ch, cb: cb}
}

func (b *breakerChannel) Request(ctx context.Context, address string, body []byte) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.channel.Request(ctx, address, body)
	})
}
