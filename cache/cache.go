// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides caching of rendered replies.  The cache wraps
// some other dispatch.Channel.  A request whose address and encoded
// body exactly match an earlier successful request is answered from
// the cache without reaching a worker.
//
// Caveats
//
// The session key is part of the encoded body, so replies are never
// shared between sessions.  Failures, coded or not, are never cached.
// Rendered images are assumed not to change; there is no expiry other
// than eviction of the least recently used reply.
package cache

import (
	"context"
	"sync/atomic"

	"github.com/omero-ms/go-imageregion/dispatch"
)

// Cache is a dispatch.Channel that remembers successful replies.
type Cache struct {
	channel dispatch.Channel
	lru     *lru
	hits    uint64
	misses  uint64
}

// New creates a new cache that holds up to size replies from ch.
func New(ch dispatch.Channel, size int) *Cache {
	return &Cache{
		channel: ch,
		lru:     newLRU(size),
	}
}

// Request returns a cached reply if there is one, and otherwise
// forwards the request to the wrapped channel.
func (c *Cache) Request(ctx context.Context, address string, body []byte) ([]byte, error) {
	key := address + "\x00" + string(body)
	reply, hit, err := c.lru.Get(key, func(string) ([]byte, error) {
		return c.channel.Request(ctx, address, body)
	})
	if hit {
		atomic.AddUint64(&c.hits, 1)
	} else {
		atomic.AddUint64(&c.misses, 1)
	}
	return reply, err
}

// Stats returns the number of requests answered from the cache and
// the number forwarded.
func (c *Cache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// Len returns the number of cached replies.
func (c *Cache) Len() int {
	return c.lru.Len()
}
