// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient provides an HTTP client for the image region
// gateway in the "restserver" package.
//
// The server in github.com/omero-ms/go-imageregion/cmd/imageregiond
// runs a compatible REST server.  Call New() with the base URL of
// that service; for instance,
//
//     c, err := restclient.New("http://localhost:8080/")
//     c.SetSession("sessionid-from-omero-web")
//     img, err := c.RenderImageRegion(1, 0, 0, url.Values{"tile": {"0,0,0"}})
package restclient

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/omero-ms/go-imageregion/restdata"
	"github.com/omero-ms/go-imageregion/session"
)

// Rendered is a successfully rendered image.
type Rendered struct {
	ContentType string
	Body        []byte
}

// Client talks to an image region gateway.
type Client struct {
	resource
	Representation restdata.RootData
}

// New creates a new client and fetches the gateway's root document.
func New(baseURL string) (*Client, error) {
	var (
		err  error
		base *url.URL
		c    *Client
	)
	base, err = url.Parse(baseURL)
	if err == nil {
		c = &Client{
			resource: resource{URL: base},
		}
		err = c.Refresh()
	}

	if err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh fetches the root document again.
func (c *Client) Refresh() error {
	c.Representation = restdata.RootData{}
	return c.Get(&c.Representation)
}

// SetHTTPClient replaces the HTTP client used for requests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.Client = client
}

// SetSession sends sessionID as the OMERO.web session cookie on every
// later request.  An empty sessionID makes requests anonymous.
func (c *Client) SetSession(sessionID string) {
	c.Cookies = nil
	if sessionID != "" {
		c.Cookies = []*http.Cookie{{Name: session.DefaultCookieName, Value: sessionID}}
	}
}

// queryVars adds the last value of each query parameter to vars.
func queryVars(vars map[string]interface{}, query url.Values) map[string]interface{} {
	for name, values := range query {
		if len(values) > 0 {
			vars[name] = values[len(values)-1]
		}
	}
	return vars
}

// RenderImageRegion renders a tile or region of one image plane.
// query holds the remaining parameters such as "tile", "c" and
// "format"; parameters the gateway does not advertise are dropped.
func (c *Client) RenderImageRegion(imageID int64, z, t int, query url.Values) (Rendered, error) {
	vars := queryVars(map[string]interface{}{}, query)
	vars["imageId"] = formatInt(imageID)
	vars["theZ"] = strconv.Itoa(z)
	vars["theT"] = strconv.Itoa(t)
	return c.render(c.Representation.ImageRegionURL, vars)
}

// RenderShapeMask renders one shape mask.  query may hold "q".
func (c *Client) RenderShapeMask(shapeID int64, query url.Values) (Rendered, error) {
	vars := queryVars(map[string]interface{}{}, query)
	vars["shapeId"] = formatInt(shapeID)
	return c.render(c.Representation.ShapeMaskURL, vars)
}

func (c *Client) render(template string, vars map[string]interface{}) (Rendered, error) {
	contentType, body, err := c.GetBytes(template, vars)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{ContentType: contentType, Body: body}, nil
}
