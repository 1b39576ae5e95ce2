// Package backend provides a standard way to construct a dispatch bus
// based on command-line flags.
package backend

import (
	"errors"
	"strings"

	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/memory"
	"github.com/omero-ms/go-imageregion/natsbus"
	"github.com/sirupsen/logrus"
)

// Backend describes user-visible parameters to reach rendering
// workers.  This implements the flag.Value interface, and so a typical
// use is
//
//     func main() {
//         backend := backend.Backend{"memory", ""}
//         flag.Var(&backend, "backend", "impl:address of the worker bus")
//         flag.Parse()
//         bus, err := backend.Bus(logrus.StandardLogger())
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// NATS server URL.
	Address string
}

// Bus creates a new bus.  This generally should be only called once.
// If b.Implementation is "memory", multiple calls to this will create
// multiple independent buses, and a worker can only be reached through
// the same bus its handlers were registered on.
//
// If b.Implementation is "nats", b.Address is the server URL, and
// defaults to the NATS default URL.  Rendered replies travel as single
// NATS messages, so the server's max_payload (1 MB by default) limits
// the size of an image; run it with at least natsbus.MaxPayload.
func (b *Backend) Bus(logger logrus.FieldLogger) (dispatch.Bus, error) {
	switch b.Implementation {
	case "memory":
		return memory.New(), nil
	case "nats":
		address := b.Address
		if address == "" {
			address = natsbus.DefaultURL
		}
		bus, err := natsbus.Connect(address)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			bus.SetLogger(logger)
		}
		return bus, nil
	default:
		return nil, errors.New("unknown bus backend " + b.Implementation)
	}
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither
// function attempts to validate the b.Address part of the string;
// Bus is the first point where a connection is made.
func (b *Backend) Set(param string) (err error) {
	parts := strings.SplitN(param, ":", 2)
	impl, address := parts[0], ""
	if len(parts) == 2 {
		address = parts[1]
	}
	switch impl {
	case "":
		err = errors.New("must specify a backend type")
	case "memory", "nats":
		b.Implementation = impl
		b.Address = address
	default:
		err = errors.New("unknown bus backend " + impl)
	}
	return
}
