// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/omero-ms/go-imageregion/restdata"
	"github.com/sirupsen/logrus"
)

// renderHandler answers one kind of render request.
type renderHandler struct {
	api     *restAPI
	address string
	build   buildFunc
}

func (api *restAPI) renderHandler(address string, build buildFunc) http.Handler {
	return &renderHandler{api: api, address: address, build: build}
}

func (h *renderHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	start := time.Now()
	logger := h.api.Logger.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	status := h.serve(resp, req, logger)
	logger.WithFields(logrus.Fields{
		"status":  status,
		"elapsed": time.Since(start),
	}).Debug("Response ended")
}

// serve handles one request and returns the status it wrote.
func (h *renderHandler) serve(resp http.ResponseWriter, req *http.Request, logger logrus.FieldLogger) int {
	params := requestParams(req)

	sessionKey, err := h.api.Sessions.SessionKey(req)
	if err != nil {
		logger.WithError(err).Warn("session lookup failed")
		writeError(resp, err)
		return restdata.Status(err)
	}

	renderable, err := h.build(params, sessionKey)
	if err != nil {
		logger.WithError(err).Debug("invalid render request")
		writeError(resp, err)
		return restdata.Status(err)
	}

	result := h.api.Dispatcher.Dispatch(req.Context(), h.address, renderable)
	if !result.OK() {
		resp.WriteHeader(result.StatusCode)
		return result.StatusCode
	}

	resp.Header().Set("Content-Type", result.ContentType)
	resp.Header().Set("Content-Length", strconv.Itoa(len(result.Body)))
	resp.WriteHeader(result.StatusCode)
	if req.Method != "HEAD" {
		if _, err := resp.Write(result.Body); err != nil {
			logger.WithError(err).Debug("failed to write response")
		}
	}
	return result.StatusCode
}
