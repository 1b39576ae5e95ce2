// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"errors"
	"time"

	"github.com/omero-ms/go-imageregion/postgres"
	"github.com/omero-ms/go-imageregion/session"
	"github.com/sirupsen/logrus"
)

// expireInterval is how often expired PostgreSQL sessions are
// deleted.
const expireInterval = 5 * time.Minute

// sessionStore is an open session store.
type sessionStore struct {
	Resolver session.Resolver

	// Run, if set, does background maintenance until ctx is done.
	Run func(ctx context.Context) error

	// Close releases the store.
	Close func() error
}

// openSessions opens the configured session store.
func openSessions(config SessionConfig) (*sessionStore, error) {
	noop := func() error { return nil }
	resolver := func(store session.Store) session.Resolver {
		return &session.CookieResolver{Store: store, CookieName: config.CookieName}
	}

	switch config.Type {
	case "":
		return &sessionStore{Resolver: session.Anonymous, Close: noop}, nil

	case "memory":
		return &sessionStore{Resolver: resolver(&session.MemoryStore{}), Close: noop}, nil

	case "redis":
		store, err := session.NewRedisStore(config.URI, config.Prefix)
		if err != nil {
			return nil, err
		}
		return &sessionStore{Resolver: resolver(store), Close: store.Close}, nil

	case "postgres":
		store, err := postgres.New(config.URI)
		if err != nil {
			return nil, err
		}
		return &sessionStore{
			Resolver: resolver(store),
			Run: func(ctx context.Context) error {
				expireSessions(ctx, store)
				return nil
			},
			Close: store.Close,
		}, nil

	default:
		return nil, errors.New("unknown session store " + config.Type)
	}
}

// expireSessions periodically deletes expired sessions until ctx is
// done.
func expireSessions(ctx context.Context, store *postgres.Store) {
	ticker := time.NewTicker(expireInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := store.Expire(ctx)
			if err != nil {
				logrus.WithError(err).Warn("Could not expire sessions")
			} else if count > 0 {
				logrus.WithField("count", count).Debug("Expired sessions")
			}
		}
	}
}
