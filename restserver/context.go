// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/omero-ms/go-imageregion/region"
)

// requestParams returns the query parameters of req with the URL path
// variables merged in.  A path variable replaces every query value of
// the same name.  The path suffix is dropped.
func requestParams(req *http.Request) url.Values {
	params := req.URL.Query()
	for name, value := range mux.Vars(req) {
		if name == suffixVar {
			continue
		}
		params[name] = []string{value}
	}
	return params
}

// buildFunc turns request parameters and a session key into a render
// context.
type buildFunc func(params url.Values, sessionKey string) (region.Renderable, error)

func (api *restAPI) imageRegionCtx(params url.Values, sessionKey string) (region.Renderable, error) {
	ctx, err := region.NewImageRegionCtx(params, sessionKey, api.Defaults)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

func (api *restAPI) shapeMaskCtx(params url.Values, sessionKey string) (region.Renderable, error) {
	ctx, err := region.NewShapeMaskCtx(params, sessionKey, api.Defaults)
	if err != nil {
		return nil, err
	}
	return ctx, nil
}
