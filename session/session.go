// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package session finds the OMERO session key for an HTTP request.
//
// Browsers carry an OMERO.web session cookie, not an OMERO session
// key.  A Resolver turns the request into the key that is passed to
// the rendering worker.  A request with no cookie, or with a cookie
// for a session the store does not know, resolves to an empty key and
// the worker decides whether to allow it.  A store failure is
// reported as restdata.ErrUnavailable, and the request is not
// rendered.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/omero-ms/go-imageregion/restdata"
)

// DefaultCookieName is the name of the OMERO.web session cookie.
const DefaultCookieName = "sessionid"

// ErrNoSession is returned by a Store that does not know a session.
var ErrNoSession = errors.New("no such session")

// Resolver finds the OMERO session key for a request.
type Resolver interface {
	SessionKey(r *http.Request) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(r *http.Request) (string, error)

// SessionKey calls f(r).
func (f ResolverFunc) SessionKey(r *http.Request) (string, error) {
	return f(r)
}

// Anonymous is a Resolver that always returns an empty session key.
var Anonymous = ResolverFunc(func(*http.Request) (string, error) {
	return "", nil
})

// Store maps OMERO.web session IDs to OMERO session keys.
type Store interface {
	// Lookup returns the OMERO session key for sessionID, or
	// ErrNoSession.
	Lookup(ctx context.Context, sessionID string) (string, error)
}

// CookieResolver reads the OMERO.web session cookie and looks it up
// in a Store.
type CookieResolver struct {
	// Store holds the sessions.  This field is required.
	Store Store

	// CookieName is the name of the session cookie.  If unset,
	// uses DefaultCookieName.
	CookieName string
}

// SessionKey returns the OMERO session key for r.
func (c *CookieResolver) SessionKey(r *http.Request) (string, error) {
	name := c.CookieName
	if name == "" {
		name = DefaultCookieName
	}
	cookie, err := r.Cookie(name)
	if err == http.ErrNoCookie || (err == nil && cookie.Value == "") {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	key, err := c.Store.Lookup(r.Context(), cookie.Value)
	if err == ErrNoSession {
		return "", nil
	}
	if err != nil {
		return "", restdata.ErrUnavailable{
			Err: fmt.Errorf("session store unavailable: %w", err),
		}
	}
	return key, nil
}

// MemoryStore is an in-memory Store, for tests and single-process
// deployments.  The zero value is an empty store.
type MemoryStore struct {
	lock     sync.RWMutex
	sessions map[string]string
}

// Set records the OMERO session key for sessionID.
func (m *MemoryStore) Set(sessionID, key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]string)
	}
	m.sessions[sessionID] = key
}

// Delete forgets sessionID.
func (m *MemoryStore) Delete(sessionID string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.sessions, sessionID)
}

// Lookup returns the OMERO session key for sessionID.
func (m *MemoryStore) Lookup(ctx context.Context, sessionID string) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	key, present := m.sessions[sessionID]
	if !present {
		return "", ErrNoSession
	}
	return key, nil
}
