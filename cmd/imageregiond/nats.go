// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net"
	"strconv"

	"github.com/omero-ms/go-imageregion/natsbus"
)

// startEmbeddedNATS starts a NATS server on an [ip]:port address.
func startEmbeddedNATS(address string) (*natsbus.EmbeddedServer, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return natsbus.StartServer(host, port)
}
