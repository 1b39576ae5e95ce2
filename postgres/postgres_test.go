// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/omero-ms/go-imageregion/postgres"
	"github.com/omero-ms/go-imageregion/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreSuite runs against a live PostgreSQL server.  The connection
// is configured from the standard libpq environment variables, see
// http://www.postgresql.org/docs/current/static/libpq-envars.html;
// the suite is skipped if PGHOST is unset.
type StoreSuite struct {
	suite.Suite
	Clock *clock.Mock
	Store *postgres.Store
}

func TestStore(t *testing.T) {
	if os.Getenv("PGHOST") == "" {
		t.Skip("PGHOST not set")
	}
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.Clock = clock.NewMock()
	s.Clock.Add(time.Duration(time.Now().Unix()) * time.Second)
	store, err := postgres.NewWithClock("", s.Clock)
	s.Require().NoError(err)
	s.Store = store
	_, err = s.Store.Expire(context.Background())
	s.Require().NoError(err)
}

func (s *StoreSuite) TearDownTest() {
	ctx := context.Background()
	for _, id := range []string{"forever", "brief", "replaced"} {
		s.NoError(s.Store.Delete(ctx, id))
	}
	s.NoError(s.Store.Close())
}

func (s *StoreSuite) TestLookupMissing() {
	_, err := s.Store.Lookup(context.Background(), "nonexistent")
	s.Equal(session.ErrNoSession, err)
}

func (s *StoreSuite) TestSetLookup() {
	ctx := context.Background()
	s.Require().NoError(s.Store.Set(ctx, "forever", "key-1", 0))

	key, err := s.Store.Lookup(ctx, "forever")
	if s.NoError(err) {
		s.Equal("key-1", key)
	}

	expires, err := s.Store.Expires(ctx, "forever")
	if s.NoError(err) {
		s.True(expires.IsZero())
	}
}

func (s *StoreSuite) TestReplace() {
	ctx := context.Background()
	s.Require().NoError(s.Store.Set(ctx, "replaced", "old", 0))
	s.Require().NoError(s.Store.Set(ctx, "replaced", "new", time.Hour))

	key, err := s.Store.Lookup(ctx, "replaced")
	if s.NoError(err) {
		s.Equal("new", key)
	}
	expires, err := s.Store.Expires(ctx, "replaced")
	if s.NoError(err) {
		s.WithinDuration(s.Clock.Now().Add(time.Hour), expires, time.Second)
	}
}

func (s *StoreSuite) TestExpiry() {
	ctx := context.Background()
	s.Require().NoError(s.Store.Set(ctx, "brief", "key-2", time.Minute))
	s.Require().NoError(s.Store.Set(ctx, "forever", "key-1", 0))

	key, err := s.Store.Lookup(ctx, "brief")
	if s.NoError(err) {
		s.Equal("key-2", key)
	}

	s.Clock.Add(2 * time.Minute)
	_, err = s.Store.Lookup(ctx, "brief")
	s.Equal(session.ErrNoSession, err)

	count, err := s.Store.Expire(ctx)
	if s.NoError(err) {
		s.Equal(int64(1), count)
	}
	_, err = s.Store.Expires(ctx, "brief")
	s.Equal(session.ErrNoSession, err)

	// The permanent session survives
	key, err = s.Store.Lookup(ctx, "forever")
	if s.NoError(err) {
		s.Equal("key-1", key)
	}
}

// TestCookieResolver wires the store into the cookie resolver.
func (s *StoreSuite) TestCookieResolver() {
	ctx := context.Background()
	require.NoError(s.T(), s.Store.Set(ctx, "forever", "key-1", 0))
	resolver := session.CookieResolver{Store: s.Store}

	req := httptest.NewRequest("GET", "/webgateway/render_image_region/1/0/0/", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "forever"})
	key, err := resolver.SessionKey(req)
	if assert.NoError(s.T(), err) {
		assert.Equal(s.T(), "key-1", key)
	}

	req = httptest.NewRequest("GET", "/webgateway/render_image_region/1/0/0/", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "stranger"})
	key, err = resolver.SessionKey(req)
	if assert.NoError(s.T(), err) {
		assert.Equal(s.T(), "", key)
	}
}
