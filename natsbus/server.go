// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package natsbus

import (
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// MaxPayload is the largest message the embedded server accepts.
// This is larger than the NATS default of 1 MB so that big rendered
// regions fit in one reply.  A standalone server should set
// max_payload to at least this.
const MaxPayload = 8 * 1024 * 1024

// EmbeddedServer is a NATS server running inside this process, so a
// gateway and its workers can share a broker without deploying one.
type EmbeddedServer struct {
	server *server.Server
}

// StartServer starts an embedded NATS server listening on host and
// port.  A port of -1 picks a free port; see ClientURL.
func StartServer(host string, port int) (*EmbeddedServer, error) {
	opts := &server.Options{
		ServerName: "imageregion",
		Host:       host,
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: MaxPayload,
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, err
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server not ready")
	}
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL returns the URL clients should connect to.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// Shutdown stops the server and waits for it to finish.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
