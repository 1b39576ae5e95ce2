// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/memory"
	"github.com/omero-ms/go-imageregion/region"
	"github.com/omero-ms/go-imageregion/render"
	"github.com/omero-ms/go-imageregion/restdata"
	"github.com/omero-ms/go-imageregion/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// recorder is a worker task that remembers every request body.
type recorder struct {
	lock   sync.Mutex
	bodies [][]byte
	reply  []byte
	err    error
}

func (r *recorder) Handle(ctx context.Context, body []byte) ([]byte, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.bodies = append(r.bodies, body)
	return r.reply, r.err
}

func (r *recorder) Bodies() [][]byte {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.bodies
}

type GatewaySuite struct {
	suite.Suite
	Bus      dispatch.Bus
	Store    *session.MemoryStore
	Gateway  *Gateway
	Router   http.Handler
	Recorder *recorder
}

func TestGateway(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.Bus = memory.New()
	s.Store = &session.MemoryStore{}
	s.Store.Set("abc", "omero-key")
	s.Recorder = &recorder{reply: []byte("rendered")}
	s.Gateway = &Gateway{
		Dispatcher: &dispatch.Dispatcher{
			Channel: s.Bus,
			Timeout: 5 * time.Second,
		},
		Sessions: &session.CookieResolver{Store: s.Store},
	}
	s.Router = NewRouter(s.Gateway)
}

func (s *GatewaySuite) TearDownTest() {
	s.NoError(s.Bus.Close())
}

// handle registers a worker task on the bus.
func (s *GatewaySuite) handle(address string, handler dispatch.Handler) {
	_, err := s.Bus.Handle(address, handler)
	s.Require().NoError(err)
}

// get performs a GET with the session cookie.
func (s *GatewaySuite) get(target string) *httptest.ResponseRecorder {
	return s.do(http.MethodGet, target, "abc")
}

func (s *GatewaySuite) do(method, target, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: cookie})
	}
	resp := httptest.NewRecorder()
	s.Router.ServeHTTP(resp, req)
	return resp
}

// lastContext decodes the last image region context a worker saw.
func (s *GatewaySuite) lastContext() *region.ImageRegionCtx {
	bodies := s.Recorder.Bodies()
	s.Require().NotEmpty(bodies)
	ctx, err := region.DecodeImageRegionCtx(bodies[len(bodies)-1])
	s.Require().NoError(err)
	return ctx
}

func (s *GatewaySuite) TestTileScenario() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.get("/webgateway/render_image_region/1/0/0?tile=0,0,0&c=1|0:255$FF0000,2|10:20$00FF00&m=c&q=0.9&format=jpeg")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal("image/jpeg", resp.Header().Get("Content-Type"))
	s.Equal("8", resp.Header().Get("Content-Length"))
	s.Equal("rendered", resp.Body.String())

	ctx := s.lastContext()
	s.Equal("omero-key", ctx.SessionKey)
	s.Equal(int64(1), ctx.ImageID)
	s.Equal(&region.Tile{}, ctx.Tile)
	s.Nil(ctx.Region)
	s.Equal([]int{1, 2}, ctx.Channels)
	s.Equal([]region.Window{{0, 255}, {10, 20}}, ctx.Windows)
	s.Equal([]string{"FF0000", "00FF00"}, ctx.Colors)
	s.Equal(region.ModeRGB, ctx.Mode)
	if s.NotNil(ctx.CompressionQuality) {
		s.Equal(0.9, *ctx.CompressionQuality)
	}
}

func (s *GatewaySuite) TestRegionScenario() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.get("/webgateway/render_image_region/5/2/3?region=10,20,30,40&m=g&format=png")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal("image/png", resp.Header().Get("Content-Type"))

	ctx := s.lastContext()
	s.Equal(int64(5), ctx.ImageID)
	s.Equal(2, ctx.Z)
	s.Equal(3, ctx.T)
	s.Nil(ctx.Tile)
	s.Equal(&region.Region{X: 10, Y: 20, Width: 30, Height: 40}, ctx.Region)
	s.Equal(region.ModeGreyscale, ctx.Mode)
	s.Empty(ctx.Channels)
}

func (s *GatewaySuite) TestMapsScenario() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.get(`/webgateway/render_image_region/1/0/0?tile=1,2,3&c=1|0:255$FF0000&maps=%5B%7B%22reverse%22%3A%7B%22enabled%22%3Atrue%7D%7D%5D`)
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal(region.BinaryMediaType, resp.Header().Get("Content-Type"))

	ctx := s.lastContext()
	s.Equal(&region.Tile{Resolution: 1, X: 2, Y: 3}, ctx.Tile)
	if s.Len(ctx.Maps, 1) && s.NotNil(ctx.Maps[0].Reverse) {
		s.True(ctx.Maps[0].Reverse.Enabled)
	}
}

func (s *GatewaySuite) TestAllImageRoutes() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	for _, path := range imageRegionPaths {
		resp := s.get(path + "/7/0/0?tile=0,0,0")
		s.Equal(http.StatusOK, resp.Code, path)
	}
	s.Len(s.Recorder.Bodies(), len(imageRegionPaths))
}

func (s *GatewaySuite) TestPathWins() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.get("/webgateway/render_image_region/1/0/0?imageId=99&theZ=4&tile=0,0,0")
	s.Require().Equal(http.StatusOK, resp.Code)
	ctx := s.lastContext()
	s.Equal(int64(1), ctx.ImageID)
	s.Equal(0, ctx.Z)
}

func (s *GatewaySuite) TestDefaults() {
	q := 0.5
	s.Gateway.Defaults = region.Defaults{Format: region.FormatJPEG, CompressionQuality: &q}
	s.Router = NewRouter(s.Gateway)
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)

	resp := s.get("/webgateway/render_image_region/1/0/0?tile=0,0,0")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal("image/jpeg", resp.Header().Get("Content-Type"))
	ctx := s.lastContext()
	if s.NotNil(ctx.CompressionQuality) {
		s.Equal(0.5, *ctx.CompressionQuality)
	}
}

func (s *GatewaySuite) TestBuildError() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.get("/webgateway/render_image_region/1/0/0?tile=0,0,0&region=0,0,1,1")
	s.Require().Equal(http.StatusBadRequest, resp.Code)
	s.Equal(restdata.V1JSONMediaType, resp.Header().Get("Content-Type"))

	var errResp restdata.ErrorResponse
	s.Require().NoError(restdata.Decode(resp.Header().Get("Content-Type"), resp.Body, &errResp))
	s.Equal("ContextBuildError", errResp.Error)
	s.Equal("tile", errResp.Field)

	resp = s.get("/webgateway/render_image_region/1/0/0?tile=0,x,0")
	s.Require().Equal(http.StatusBadRequest, resp.Code)
	errResp = restdata.ErrorResponse{}
	s.Require().NoError(restdata.Decode(resp.Header().Get("Content-Type"), resp.Body, &errResp))
	s.Equal("tile", errResp.Field)
	s.Equal("0,x,0", errResp.Value)

	resp = s.get("/webgateway/render_image_region/abc/0/0?tile=0,0,0")
	s.Equal(http.StatusBadRequest, resp.Code)

	// None of these reached a worker
	s.Empty(s.Recorder.Bodies())
}

func (s *GatewaySuite) TestWorkerCode() {
	s.Recorder.err = dispatch.Fail(http.StatusForbidden, "no")
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.get("/webgateway/render_image_region/1/0/0?tile=0,0,0")
	s.Equal(http.StatusForbidden, resp.Code)
	s.Equal(0, resp.Body.Len())
}

func (s *GatewaySuite) TestWorkerUncoded() {
	s.Recorder.err = errors.New("crashed")
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.get("/webgateway/render_image_region/1/0/0?tile=0,0,0")
	s.Equal(http.StatusNotFound, resp.Code)
	s.Equal(0, resp.Body.Len())
}

func (s *GatewaySuite) TestNoWorker() {
	resp := s.get("/webgateway/render_shape_mask/1")
	s.Equal(http.StatusNotFound, resp.Code)
	s.Equal(0, resp.Body.Len())
}

func (s *GatewaySuite) TestTimeout() {
	s.Gateway.Dispatcher.Timeout = 20 * time.Millisecond
	release := make(chan struct{})
	defer close(release)
	s.handle(dispatch.ImageRegionAddress, func(ctx context.Context, body []byte) ([]byte, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	resp := s.get("/webgateway/render_image_region/1/0/0?tile=0,0,0")
	s.Equal(http.StatusNotFound, resp.Code)
}

// downStore is a session store that cannot be reached.
type downStore struct{}

func (downStore) Lookup(context.Context, string) (string, error) {
	return "", errors.New("redis down")
}

func (s *GatewaySuite) TestSessionUnavailable() {
	s.Gateway.Sessions = &session.CookieResolver{Store: downStore{}}
	s.Router = NewRouter(s.Gateway)
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)

	resp := s.do(http.MethodGet, "/webgateway/render_image_region/1/0/0?tile=0,0,0", "abc")
	s.Require().Equal(http.StatusServiceUnavailable, resp.Code)
	var errResp restdata.ErrorResponse
	s.Require().NoError(restdata.Decode(resp.Header().Get("Content-Type"), resp.Body, &errResp))
	s.Equal("unavailable", errResp.Error)
	s.Equal("session store unavailable: redis down", errResp.Message)
	s.Empty(s.Recorder.Bodies())
}

func (s *GatewaySuite) TestTrailingSlash() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	s.handle(dispatch.ShapeMaskAddress, s.Recorder.Handle)

	for _, target := range []string{
		"/webgateway/render_image_region/1/0/0/?tile=0,0,0",
		"/webgateway/render_image/1/0/0/?tile=0,0,0",
		"/webclient/render_image_region/1/0/0/?tile=0,0,0",
		"/webclient/render_image/1/0/0/extra?tile=0,0,0",
	} {
		resp := s.get(target)
		s.Require().Equal(http.StatusOK, resp.Code, target)
		ctx := s.lastContext()
		s.Equal(int64(1), ctx.ImageID, target)
		s.Equal(0, ctx.T, target)
	}

	resp := s.get("/webgateway/render_shape_mask/5/")
	s.Require().Equal(http.StatusOK, resp.Code)
	bodies := s.Recorder.Bodies()
	mask, err := region.DecodeShapeMaskCtx(bodies[len(bodies)-1])
	s.Require().NoError(err)
	s.Equal(int64(5), mask.ShapeID)
	s.Len(bodies, 5)

	// The suffix must start with a slash
	resp = s.get("/webgateway/render_image_region/1/0/0x?tile=0,0,0")
	s.Equal(http.StatusBadRequest, resp.Code)
	s.Len(s.Recorder.Bodies(), 5)
}

func (s *GatewaySuite) TestAnonymous() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.do(http.MethodGet, "/webgateway/render_image_region/1/0/0?tile=0,0,0", "")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal("", s.lastContext().SessionKey)

	resp = s.do(http.MethodGet, "/webgateway/render_image_region/1/0/0?tile=0,0,0", "stranger")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal("", s.lastContext().SessionKey)
}

func (s *GatewaySuite) TestHead() {
	s.handle(dispatch.ImageRegionAddress, s.Recorder.Handle)
	resp := s.do(http.MethodHead, "/webgateway/render_image_region/1/0/0?tile=0,0,0&format=png", "abc")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal("8", resp.Header().Get("Content-Length"))
	s.Equal(0, resp.Body.Len())
}

func (s *GatewaySuite) TestDemoRenderer() {
	for address, task := range render.NewDemo().Tasks() {
		s.handle(address, task)
	}

	resp := s.get("/webgateway/render_image_region/1/0/0?tile=0,0,0&format=png")
	s.Require().Equal(http.StatusOK, resp.Code)
	img, err := png.Decode(bytes.NewReader(resp.Body.Bytes()))
	if s.NoError(err) {
		s.Equal(256, img.Bounds().Dx())
	}

	resp = s.get("/webgateway/render_shape_mask/1")
	s.Require().Equal(http.StatusOK, resp.Code)
	s.Equal("image/png", resp.Header().Get("Content-Type"))

	// The demo renderer refuses anonymous requests
	resp = s.do(http.MethodGet, "/webgateway/render_image_region/1/0/0?tile=0,0,0", "")
	s.Equal(http.StatusForbidden, resp.Code)

	resp = s.get("/webgateway/render_image_region/2/0/0?tile=0,0,0")
	s.Equal(http.StatusNotFound, resp.Code)

	resp = s.get("/webgateway/render_shape_mask/2")
	s.Equal(http.StatusNotFound, resp.Code)
}

func (s *GatewaySuite) TestRootDocument() {
	resp := s.get("/")
	s.Require().Equal(http.StatusOK, resp.Code)
	var root restdata.RootData
	s.Require().NoError(restdata.Decode(resp.Header().Get("Content-Type"), resp.Body, &root))
	s.Equal("/webgateway/render_image_region/{imageId}/{theZ}/{theT}{?tile,region,c,maps,m,q,format}",
		root.ImageRegionURL)
	s.Equal("/webgateway/render_shape_mask/{shapeId}{?q}", root.ShapeMaskURL)
}

func TestRequestParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?a=1&a=2&b=3&imageId=9&imageId=10", nil)
	req = mux.SetURLVars(req, map[string]string{"imageId": "1", "theZ": "0", "suffix": "/"})
	params := requestParams(req)
	assert.Equal(t, []string{"1", "2"}, params["a"])
	assert.Equal(t, []string{"3"}, params["b"])
	assert.Equal(t, []string{"1"}, params["imageId"])
	assert.Equal(t, []string{"0"}, params["theZ"])
	require.NotContains(t, params, "theT")
	require.NotContains(t, params, "suffix")
}
