// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

// This file provides generic REST client code.

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jtacoma/uritemplates"
	"github.com/omero-ms/go-imageregion/restdata"
)

// resource is any object that has a URL.
type resource struct {
	URL *url.URL

	// Client performs the HTTP requests.  If nil, uses
	// http.DefaultClient.
	Client *http.Client

	// Cookies are sent with every request.
	Cookies []*http.Cookie
}

func (r *resource) Template(template string, vars map[string]interface{}) (*url.URL, error) {
	// Build the template object
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}

	// Expand the template to produce a string
	expanded, err := tmpl.Expand(vars)
	if err != nil {
		return nil, err
	}

	// Return the parsed URL of the result, relative to ourselves
	return r.URL.Parse(expanded)
}

// do performs an HTTP GET and returns the successful response.  The
// caller must close its body.
func (r *resource) do(url *url.URL, accept string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url.String(), nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for _, cookie := range r.Cookies {
		req.AddCookie(cookie)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if err = checkHTTPStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Get retrieves a JSON document from its own URL.  The result is
// stored in out, which must be of pointer type.
func (r *resource) Get(out interface{}) (err error) {
	resp, err := r.do(r.URL, restdata.V1JSONMediaType)
	if err != nil {
		return err
	}
	defer func() {
		err = firstError(err, resp.Body.Close())
	}()
	contentType := resp.Header.Get("Content-Type")
	return restdata.Decode(contentType, resp.Body, out)
}

// GetBytes retrieves raw content from some other URL.  template is
// interpreted as a URI template, modified by vars, and the result
// taken relative to the resource's URL.
func (r *resource) GetBytes(template string, vars map[string]interface{}) (contentType string, body []byte, err error) {
	url, err := r.Template(template, vars)
	if err != nil {
		return "", nil, err
	}
	resp, err := r.do(url, "")
	if err != nil {
		return "", nil, err
	}
	defer func() {
		err = firstError(err, resp.Body.Close())
	}()
	body, err = ioutil.ReadAll(resp.Body)
	return resp.Header.Get("Content-Type"), body, err
}

// ErrorHTTP is a catch-all error for non-successes returned from the
// REST endpoint.
type ErrorHTTP struct {
	// Response holds a pointer to the failing HTTP response.
	Response *http.Response

	// Body holds the contents of the message body, presumed to
	// be text.
	Body string
}

func (e ErrorHTTP) Error() string {
	return e.Response.Status
}

// HTTPStatus returns the status code of the failing response.
func (e ErrorHTTP) HTTPStatus() int {
	return e.Response.StatusCode
}

// ErrorResponse is an error the server described with a JSON
// restdata.ErrorResponse body.
type ErrorResponse struct {
	// Status is the HTTP status code of the response.
	Status int

	// Err is the error the server described.
	Err error
}

func (e ErrorResponse) Error() string {
	return e.Err.Error()
}

func (e ErrorResponse) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code of the failing response.
func (e ErrorResponse) HTTPStatus() int {
	return e.Status
}

// checkHTTPStatus examines an HTTP response and returns an error if
// it is not successful.
func checkHTTPStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Always collect the entire body; we will need it as a fallback
	// and can only parse it once.
	var body []byte
	var err error
	if resp.Body != nil {
		body, err = ioutil.ReadAll(resp.Body)
		if err != nil {
			return err
		}
	}

	// Take a shot at decoding it as a better error
	if len(body) > 0 {
		var errResp restdata.ErrorResponse
		contentType := resp.Header.Get("Content-Type")
		err2 := restdata.Decode(contentType, bytes.NewReader(body), &errResp)
		if err2 == nil {
			// Given that we decoded that successfully, return the
			// server-provided error
			return ErrorResponse{Status: resp.StatusCode, Err: errResp.ToError()}
		}
	}

	return ErrorHTTP{Response: resp, Body: string(body)}
}

func firstError(e1, e2 error) error {
	if e1 != nil {
		return e1
	}
	return e2
}

// formatInt is strconv.FormatInt in base 10.
func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
