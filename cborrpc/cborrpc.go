// Package cborrpc defines the CBOR envelope used to carry render
// requests and worker replies over a message broker.
package cborrpc

import (
	"reflect"

	"github.com/satori/go.uuid"
	"github.com/ugorji/go/codec"
)

// Request defines the fields of a request envelope.
type Request struct {
	// Unique identifier for this request.
	ID uuid.UUID `codec:"id"`
	// Address the request was sent to.
	Address string `codec:"address"`
	// Encoded render context.
	Body []byte `codec:"body"`
}

// Response defines the fields of a response envelope.
type Response struct {
	// Identifier of the request this answers.  This should always
	// match the identifier from the corresponding Request.
	ID uuid.UUID `codec:"id"`
	// Rendered bytes; should be empty on error.
	Result []byte `codec:"result,omitempty"`
	// HTTP status code of a coded failure; zero otherwise.
	Code int `codec:"code,omitempty"`
	// Error message on failure; should be empty on success.
	Error string `codec:"error,omitempty"`
}

// Failed returns true if the response reports any kind of failure.
func (r Response) Failed() bool {
	return r.Code != 0 || r.Error != ""
}

// uuidExt is a codec extension plugin to encode and decode UUID
// objects.
type uuidExt struct {
	cbor *codec.CborHandle
}

func (x uuidExt) WriteExt(v interface{}) []byte {
	panic("uuidExt.WriteExt not implemented")
}

func (x uuidExt) ReadExt(v interface{}, data []byte) {
	panic("uuidExt.ReadExt not implemented")
}

func (x uuidExt) ConvertExt(v interface{}) interface{} {
	switch id := v.(type) {
	case uuid.UUID:
		return id.Bytes()
	case *uuid.UUID:
		return id.Bytes()
	}
	panic("uuidExt.ConvertExt called on a non-UUID")
}

func (x uuidExt) UpdateExt(dest interface{}, v interface{}) {
	bytes := v.([]byte)
	if len(bytes) != 16 {
		panic("encoded UUID must have 16 bytes")
	}
	uuidp := dest.(*uuid.UUID)
	*uuidp = uuid.UUID{}
	copy(uuidp[:], bytes)
}

// SetExts sets up the CBOR codec to understand the other objects in
// this package.  UUIDs are written as CBOR tag 37, as in RFC 4122
// binary form.
func SetExts(cbor *codec.CborHandle) error {
	return cbor.SetExt(reflect.TypeOf(uuid.UUID{}), 37, &uuidExt{cbor})
}

// NewHandle returns a CBOR handle with the extensions from SetExts.
func NewHandle() (*codec.CborHandle, error) {
	cbor := new(codec.CborHandle)
	if err := SetExts(cbor); err != nil {
		return nil, err
	}
	return cbor, nil
}

// Encode writes an envelope with a handle from NewHandle.
func Encode(cbor *codec.CborHandle, v interface{}) (out []byte, err error) {
	encoder := codec.NewEncoderBytes(&out, cbor)
	err = encoder.Encode(v)
	return
}

// Decode reads an envelope with a handle from NewHandle.
func Decode(cbor *codec.CborHandle, data []byte, v interface{}) error {
	decoder := codec.NewDecoderBytes(data, cbor)
	return decoder.Decode(v)
}
