// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/omero-ms/go-imageregion/restserver"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// newHandler builds the complete HTTP handler: the gateway routes
// and /metrics, behind panic recovery, CORS and optional request
// logging.
func newHandler(gateway *restserver.Gateway, reqLogger *logrus.Logger) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	restserver.PopulateRouter(r, gateway)

	recovery := negroni.NewRecovery()
	recovery.Logger = logrus.StandardLogger()
	n := negroni.New(recovery)
	if reqLogger != nil {
		logger := negroni.NewLogger()
		logger.ALogger = reqLogger
		n.Use(logger)
	}
	n.Use(cors.New(cors.Options{
		AllowedMethods:   []string{"GET", "HEAD"},
		AllowCredentials: true,
	}))
	n.UseHandler(r)
	return n
}
