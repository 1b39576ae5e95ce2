// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is the key prefix the OMERO.web cached session
// backend uses.
const DefaultRedisPrefix = ":1:django.contrib.sessions.cache"

// RedisStore looks sessions up in Redis.  Each session is a string
// key, the prefix followed by the session ID, whose value is the
// OMERO session key.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at url, for instance
// "redis://localhost:6379/0".  An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: prefix}, nil
}

// Lookup returns the OMERO session key for sessionID.
func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (string, error) {
	key, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	if err == redis.Nil {
		return "", ErrNoSession
	}
	return key, err
}

// Set records the OMERO session key for sessionID, expiring after
// ttl.  Zero ttl never expires.
func (s *RedisStore) Set(ctx context.Context, sessionID, key string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+sessionID, key, ttl).Err()
}

// Delete forgets sessionID.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}

// Ping checks that the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
