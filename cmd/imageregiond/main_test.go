// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/memory"
	"github.com/omero-ms/go-imageregion/region"
	"github.com/omero-ms/go-imageregion/render"
	"github.com/omero-ms/go-imageregion/restserver"
	"github.com/omero-ms/go-imageregion/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
port: 9090
debug: true
backend: nats:nats://localhost:4222
timeout: 30s
cache-size: 100
session-store:
  type: redis
  uri: redis://localhost:6379/1
defaults:
  format: jpeg
  quality: 0.8
  mode: g
`

func writeConfig(t *testing.T, text string) string {
	dir, err := ioutil.TempDir("", "imageregiond")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	filename := filepath.Join(dir, "config.yaml")
	require.NoError(t, ioutil.WriteFile(filename, []byte(text), 0644))
	return filename
}

func TestReadConfig(t *testing.T) {
	config, err := readConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Port)
	assert.True(t, config.Debug)
	assert.Equal(t, "nats:nats://localhost:4222", config.Backend)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 100, config.CacheSize)
	assert.Equal(t, SessionConfig{Type: "redis", URI: "redis://localhost:6379/1"}, config.Sessions)

	defaults, err := config.Defaults.Region()
	require.NoError(t, err)
	assert.Equal(t, region.FormatJPEG, defaults.Format)
	assert.Equal(t, region.ModeGreyscale, defaults.Mode)
	if assert.NotNil(t, defaults.CompressionQuality) {
		assert.Equal(t, 0.8, *defaults.CompressionQuality)
	}
}

func TestReadConfigDefaults(t *testing.T) {
	config, err := readConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), config)
	assert.Equal(t, "memory", config.Backend)
	assert.Equal(t, dispatch.DefaultTimeout, config.Timeout)
}

func TestReadConfigUnknownKey(t *testing.T) {
	_, err := readConfig(writeConfig(t, "port: 1\ncolour: blue\n"))
	assert.Error(t, err)
}

func TestReadConfigMissingFile(t *testing.T) {
	_, err := readConfig(filepath.Join(os.TempDir(), "no-such-imageregiond.yaml"))
	assert.Error(t, err)
}

func TestBadDefaults(t *testing.T) {
	_, err := DefaultsConfig{Format: "gif"}.Region()
	assert.Error(t, err)
	_, err = DefaultsConfig{Mode: "x"}.Region()
	assert.Error(t, err)
}

func TestOpenSessions(t *testing.T) {
	store, err := openSessions(SessionConfig{})
	require.NoError(t, err)
	key, err := store.Resolver.SessionKey(httptest.NewRequest("GET", "/", nil))
	assert.NoError(t, err)
	assert.Equal(t, "", key)
	assert.NoError(t, store.Close())

	store, err = openSessions(SessionConfig{Type: "memory", CookieName: "omero"})
	require.NoError(t, err)
	if resolver, ok := store.Resolver.(*session.CookieResolver); assert.True(t, ok) {
		assert.Equal(t, "omero", resolver.CookieName)
	}
	assert.Nil(t, store.Run)

	_, err = openSessions(SessionConfig{Type: "memcached"})
	assert.Error(t, err)

	_, err = openSessions(SessionConfig{Type: "redis", URI: "not a url"})
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	bus := memory.New()
	defer bus.Close()
	for address, task := range render.NewDemo().Tasks() {
		_, err := bus.Handle(address, task)
		require.NoError(t, err)
	}
	channel, err := newChannel(bus, 0)
	require.NoError(t, err)

	handler := newHandler(&restserver.Gateway{
		Dispatcher: &dispatch.Dispatcher{Channel: channel, Observer: observe},
		Sessions: session.ResolverFunc(func(*http.Request) (string, error) {
			return "key", nil
		}),
	}, requestLogger(true))
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/webgateway/render_shape_mask/1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	// The dispatch was counted
	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `omero_imageregion_dispatch_results_total{address="omero.render_shape_mask",status="200"}`)

	// CORS preflight is answered
	req, err := http.NewRequest("OPTIONS", server.URL+"/webgateway/render_shape_mask/1", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStartEmbeddedNATS(t *testing.T) {
	_, err := startEmbeddedNATS("no port")
	assert.Error(t, err)

	ns, err := startEmbeddedNATS("127.0.0.1:-1")
	require.NoError(t, err)
	defer ns.Shutdown()
	assert.NotEmpty(t, ns.ClientURL())
}
