// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains various HTTP-related helpers.

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

type urlBuilder struct {
	Router *mux.Router
	Error  error
}

func buildURLs(router *mux.Router) *urlBuilder {
	return &urlBuilder{Router: router}
}

func (u *urlBuilder) Route(route string) *mux.Route {
	if u.Error != nil {
		return nil
	}
	r := u.Router.Get(route)
	if r == nil {
		u.Error = fmt.Errorf("No such route %q", route)
	}
	return r
}

// Template writes an RFC 6570 URI template for route to out.  Each
// of params becomes a {param} path expression, and query, if not
// empty, becomes a trailing {?q1,q2} expression.
func (u *urlBuilder) Template(out *string, route string, query []string, params ...string) *urlBuilder {
	var r *mux.Route
	var url *url.URL
	if u.Error == nil {
		r = u.Route(route)
	}
	if u.Error == nil {
		pairs := make([]string, 0, 2*len(params)+2)
		for _, param := range params {
			pairs = append(pairs, param, placeholder(param))
		}
		pairs = append(pairs, suffixVar, "")
		url, u.Error = r.URL(pairs...)
	}
	if u.Error == nil {
		s := url.String()
		for _, param := range params {
			s = strings.Replace(s, placeholder(param), "{"+param+"}", 1)
		}
		if len(query) > 0 {
			s += "{?" + strings.Join(query, ",") + "}"
		}
		*out = s
	}
	return u
}

func placeholder(param string) string {
	return "---" + param + "---"
}
