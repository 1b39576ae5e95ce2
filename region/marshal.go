// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package region

import (
	"github.com/ugorji/go/codec"
)

// Encode returns the canonical JSON form of a render context.  This
// is what gets sent to a rendering worker.
func Encode(r Renderable) (out []byte, err error) {
	encoder := codec.NewEncoderBytes(&out, jsonHandle())
	err = encoder.Encode(r)
	return
}

// DecodeImageRegionCtx decodes the canonical JSON form of an image
// region context.  Absent or null lists decode as empty lists, so
// that decoding an encoded context produces an equal value.
func DecodeImageRegionCtx(data []byte) (*ImageRegionCtx, error) {
	ctx := &ImageRegionCtx{}
	decoder := codec.NewDecoderBytes(data, jsonHandle())
	if err := decoder.Decode(ctx); err != nil {
		return nil, err
	}
	if ctx.Channels == nil {
		ctx.Channels = []int{}
	}
	if ctx.Windows == nil {
		ctx.Windows = []Window{}
	}
	if ctx.Colors == nil {
		ctx.Colors = []string{}
	}
	if ctx.Maps == nil {
		ctx.Maps = []CodomainMap{}
	}
	return ctx, nil
}

// DecodeShapeMaskCtx decodes the canonical JSON form of a shape mask
// context.
func DecodeShapeMaskCtx(data []byte) (*ShapeMaskCtx, error) {
	ctx := &ShapeMaskCtx{}
	decoder := codec.NewDecoderBytes(data, jsonHandle())
	if err := decoder.Decode(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}
