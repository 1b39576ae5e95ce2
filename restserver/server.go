// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/region"
	"github.com/omero-ms/go-imageregion/restdata"
	"github.com/omero-ms/go-imageregion/session"
	"github.com/sirupsen/logrus"
)

// Gateway holds the collaborators of the HTTP gateway.
type Gateway struct {
	// Dispatcher sends render contexts to the workers.  This
	// field is required.
	Dispatcher *dispatch.Dispatcher

	// Sessions finds the OMERO session key for a request.  If
	// unset, every request is anonymous.
	Sessions session.Resolver

	// Defaults fills in optional render context fields.
	Defaults region.Defaults

	// Logger receives per-request debug output.  If unset, uses
	// the logrus standard logger.
	Logger logrus.FieldLogger
}

// NewRouter creates a new HTTP handler that processes all gateway
// requests.  All resources are under the URL path root, e.g.
// /webgateway/render_image_region/1/0/0.  For more control over this
// setup, create a mux.Router and call PopulateRouter instead.
func NewRouter(g *Gateway) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, g)
	return r
}

// PopulateRouter adds gateway routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the gateway under a subpath:
//
//     r := mux.NewRouter()
//     s := r.PathPrefix("/omero").Subrouter()
//     PopulateRouter(s, &Gateway{Dispatcher: d})
func PopulateRouter(r *mux.Router, g *Gateway) {
	api := &restAPI{Gateway: *g, Router: r}
	if api.Sessions == nil {
		api.Sessions = session.Anonymous
	}
	if api.Logger == nil {
		api.Logger = logrus.StandardLogger()
	}
	api.PopulateRouter(r)
}

// restAPI holds the persistent state for the gateway REST API.
type restAPI struct {
	Gateway
	Router *mux.Router
}

// PopulateRouter adds all gateway URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	imageRegion := api.renderHandler(dispatch.ImageRegionAddress, api.imageRegionCtx)
	for _, path := range imageRegionPaths {
		route := r.Path(path + "/{imageId}/{theZ}/{theT}" + suffixPattern).
			Methods("GET", "HEAD").
			Handler(imageRegion)
		if path == imageRegionPaths[0] {
			route.Name("image_region")
		}
	}
	r.Path("/webgateway/render_shape_mask/{shapeId}" + suffixPattern).
		Methods("GET", "HEAD").
		Name("shape_mask").
		Handler(api.renderHandler(dispatch.ShapeMaskAddress, api.shapeMaskCtx))
	r.Path("/").Name("root").Handler(&resourceHandler{
		Get: api.RootDocument,
	})
}

// suffixVar matches anything after the last path variable, such as
// the trailing slash OMERO.web clients send.  It is not a render
// parameter.
const suffixVar = "suffix"

const suffixPattern = "{" + suffixVar + ":(?:/.*)?}"

// imageRegionPaths are the path prefixes that render an image
// region.  The first is the canonical one.
var imageRegionPaths = []string{
	"/webgateway/render_image_region",
	"/webgateway/render_image",
	"/webclient/render_image_region",
	"/webclient/render_image",
}

// Query parameters advertised in the root document's templates.
var (
	imageRegionQuery = []string{"tile", "region", "c", "maps", "m", "q", "format"}
	shapeMaskQuery   = []string{"q"}
)

func (api *restAPI) RootDocument(req *http.Request) (interface{}, error) {
	resp := restdata.RootData{}
	err := buildURLs(api.Router).
		Template(&resp.ImageRegionURL, "image_region", imageRegionQuery, "imageId", "theZ", "theT").
		Template(&resp.ShapeMaskURL, "shape_mask", shapeMaskQuery, "shapeId").
		Error
	return resp, err
}
