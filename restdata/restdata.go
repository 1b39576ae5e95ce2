// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restdata defines common data structures shared between the
// restserver and restclient packages.  Generally JSON encodings of
// these are passed across the wire as the
// application/vnd.omero.imageregion.v1+json MIME type.  Rendered
// images themselves are passed as raw bytes with their own image
// media type.
//
// API Usage
//
// HTTP GET the root document at its specified URL.  This will return
// a JSON serialization of the RootData object.  That serialization
// has links to the rendering resources; fill in their template values
// to get images.
//
// The URL fields are RFC 6570 URI templates.  This is a fancy way of
// saying that they are URL strings with a {parameter} in curly braces
// (or, in some cases, {?p1,p2} to describe query strings).  If the
// system is rooted at /, a JSON serialization of RootData will look
// like
//
//     {
//         "image_region_url": "/webgateway/render_image_region/{imageId}/{theZ}/{theT}{?tile,region,c,maps,m,q,format}",
//         "shape_mask_url": "/webgateway/render_shape_mask/{shapeId}{?q}"
//     }
//
// The gateway also answers the legacy OMERO.web paths
// /webgateway/render_image/..., /webclient/render_image_region/...
// and /webclient/render_image/..., which behave exactly like
// /webgateway/render_image_region/....
//
// Query Parameters
//
// tile is "resolution,x,y" (further components are accepted and
// ignored); region is "x,y,width,height"; exactly one of the two is
// required.  c is a comma-separated list of "index|min:max$RRGGBB"
// channel entries.  maps is a JSON array with one {"reverse":
// {"enabled": bool}} object per channel.  m is "c" for color or "g"
// for greyscale.  q is the compression quality.  format is "jpeg",
// "png" or "tif".  If a parameter is repeated, its last value is used.
//
// Errors
//
// A request that cannot be turned into a render context is answered
// with 400 Bad Request and an encoding of the ErrorResponse type.  A
// request the rendering worker refuses is answered with the worker's
// status code and an empty body; 404 Not Found is used whenever the
// worker gave no code, including when it did not answer in time.
//
// If Go server code panics, this should be captured and returned as
// an ErrorResponse with error code "panic".
package restdata

// V1JSONMediaType is the preferred, most specific MIME type for the
// JSON representation of this content.
const V1JSONMediaType = "application/vnd.omero.imageregion.v1+json"

// JSONMediaType requests the most recent version of the JSON
// representation of this content.
const JSONMediaType = "application/vnd.omero.imageregion+json"

// RootData is the root document of the gateway.
type RootData struct {
	// ImageRegionURL is a URI template to render a tile or region
	// of an image plane.
	ImageRegionURL string `json:"image_region_url"`

	// ShapeMaskURL is a URI template to render a shape mask.
	ShapeMaskURL string `json:"shape_mask_url"`
}

// ErrorResponse describes an error to be returned.
type ErrorResponse struct {
	// Error is a code describing the error.  This is
	// "ContextBuildError" for malformed requests, "unavailable"
	// when a required service is down, or "panic" if the server
	// crashed.
	Error string `json:"error"`

	// Field names the query parameter at fault, if any.
	Field string `json:"field,omitempty"`

	// Value is the offending parameter text, if any.
	Value string `json:"value,omitempty"`

	// Message is a human-readable message describing the error.
	Message string `json:"message"`

	// Stack is a Go stack trace, if the server panicked.
	Stack string `json:"stack,omitempty"`
}
