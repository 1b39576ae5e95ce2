// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a simple LRU cache of rendered replies, keyed by
// the worker address and the encoded request.

import (
	"container/list"
	"sync"
)

// entry is one cached reply.
type entry struct {
	key   string
	reply []byte
}

// lru is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type lru struct {
	size      int
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

func newLRU(size int) *lru {
	return &lru{
		size:      size,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves a reply from the cache.  If it is not present, calls
// the fetch function, and if that succeeds, saves the reply and
// returns it.  The lock is not held while fetch runs, so concurrent
// misses on one key may each call fetch.  The returned bool is true
// on a cache hit.
func (lru *lru) Get(key string, fetch func(string) ([]byte, error)) ([]byte, bool, error) {
	// This sadly happens under a writer lock, since we need to move
	// the item to the back of the list if it is present
	lru.lock.Lock()
	if element, present := lru.index[key]; present {
		lru.evictList.MoveToBack(element)
		reply := element.Value.(*entry).reply
		lru.lock.Unlock()
		return reply, true, nil
	}
	lru.lock.Unlock()

	// Otherwise call the fetch function
	reply, err := fetch(key)
	if err != nil {
		return nil, false, err
	}
	lru.Put(key, reply)
	return reply, false, nil
}

// Peek looks for a reply in the cache and returns it if present.
// This runs under a reader lock, and so can run concurrently with
// itself but not calls to Put or Get.  This does not affect the
// recency of the item.
func (lru *lru) Peek(key string) ([]byte, bool) {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[key]; present {
		return element.Value.(*entry).reply, true
	}
	return nil, false
}

// Put adds a reply to the LRU cache, possibly evicting something.
func (lru *lru) Put(key string, reply []byte) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	// Are we just updating an existing item?
	if element, present := lru.index[key]; present {
		element.Value.(*entry).reply = reply
		lru.evictList.MoveToBack(element)
		return
	}

	// Otherwise add it
	element := lru.evictList.PushBack(&entry{key: key, reply: reply})
	lru.index[key] = element

	// If this caused the cache to go over size, start evicting items
	for len(lru.index) > lru.size {
		head := lru.evictList.Front()
		delete(lru.index, head.Value.(*entry).key)
		lru.evictList.Remove(head)
	}
}

// Remove takes an item out of the cache.  It does nothing if that
// key does not exist.
func (lru *lru) Remove(key string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		delete(lru.index, key)
		lru.evictList.Remove(element)
	}
}

// Len returns the number of cached replies.
func (lru *lru) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}
