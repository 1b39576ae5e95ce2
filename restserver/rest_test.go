// Regression tests for rest.go.
//
// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/memory"
	"github.com/omero-ms/go-imageregion/restdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failResponseWriter struct {
	Headers    http.Header
	StatusCode int
}

func (rw *failResponseWriter) Header() http.Header {
	if rw.Headers == nil {
		rw.Headers = make(http.Header)
	}
	return rw.Headers
}

func (rw *failResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("foo")
}

func (rw *failResponseWriter) WriteHeader(code int) {
	rw.StatusCode = code
}

// TestDoubleFault checks that, if there is an error serializing a JSON
// response, it doesn't actually panic the process.
func TestDoubleFault(t *testing.T) {
	router := NewRouter(&Gateway{
		Dispatcher: &dispatch.Dispatcher{Channel: memory.New()},
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := &failResponseWriter{}
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNegotiateResponse(t *testing.T) {
	for _, c := range []struct {
		accept   string
		expected string
		status   int
	}{
		{"", restdata.V1JSONMediaType, 0},
		{"*/*", restdata.V1JSONMediaType, 0},
		{"application/*", restdata.V1JSONMediaType, 0},
		{"text/*", "text/json", 0},
		{"application/json", "application/json", 0},
		{"text/html;q=0.9, application/json;q=0.5", "application/json", 0},
		{"*/*;q=0.1, " + restdata.JSONMediaType, restdata.JSONMediaType, 0},
		{"text/html", "", http.StatusNotAcceptable},
		{"application/json;q=7", "", 0},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.accept != "" {
			req.Header.Set("Accept", c.accept)
		}
		actual, err := negotiateResponse(req)
		if c.expected != "" {
			if assert.NoError(t, err, c.accept) {
				assert.Equal(t, c.expected, actual, c.accept)
			}
		} else if assert.Error(t, err, c.accept) && c.status != 0 {
			assert.Equal(t, c.status, restdata.Status(err), c.accept)
		}
	}
}

func TestRootNotAcceptable(t *testing.T) {
	router := NewRouter(&Gateway{
		Dispatcher: &dispatch.Dispatcher{Channel: memory.New()},
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "image/png")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNotAcceptable, resp.Code)
	assert.Equal(t, restdata.V1JSONMediaType, resp.Header().Get("Content-Type"))
}

func TestRootMethodNotAllowed(t *testing.T) {
	router := NewRouter(&Gateway{
		Dispatcher: &dispatch.Dispatcher{Channel: memory.New()},
	})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}
