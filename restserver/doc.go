// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restserver publishes the image region gateway over HTTP.
// The restclient package is a matching client.
//
// The JSON data structures are defined in the restdata package.
//
// HTTP Considerations
//
// Rendering routes return the worker's bytes with the content type of
// the requested output format, or an error status with an empty body.
// Only malformed requests get a JSON body, an encoding of
// restdata.ErrorResponse.  The root document is JSON, and clients
// should use the standard HTTP Accept: header to request it.  See
// "MIME Types" below.
//
// This interface does not (currently) support HTTP caching headers.
// Authentication is by the OMERO.web session cookie, which is turned
// into an OMERO session key by a session.Resolver.
//
// MIME Types
//
// The root document understands MIME types as follows:
//
//     application/vnd.omero.imageregion.v1+json
//
// JSON representation of version 1 of this interface.
//
//     application/vnd.omero.imageregion+json
//     application/json
//     text/json
//
// JSON representation of latest version of this interface.
//
// URL Scheme
//
// The following URLs are defined:
//
//     /
//     /webgateway/render_image_region/{imageId}/{theZ}/{theT}
//     /webgateway/render_image/{imageId}/{theZ}/{theT}
//     /webclient/render_image_region/{imageId}/{theZ}/{theT}
//     /webclient/render_image/{imageId}/{theZ}/{theT}
//     /webgateway/render_shape_mask/{shapeId}
//
// Path parameters are merged into the query parameters, replacing
// any query parameter of the same name.
package restserver
