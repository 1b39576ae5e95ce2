// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package render provides reference rendering tasks for a worker.
//
// The images are synthetic: every plane of every channel is an
// intensity gradient, so rendered regions are deterministic and cheap
// to produce.  The tasks enforce the same coded failures a real
// renderer would report: 403 when the request carries no session key,
// 404 for an image or shape that does not exist, and 400 for a plane,
// tile or region outside the image.
package render

import (
	"context"
	"image/color"
	"net/http"

	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/region"
)

// DefaultTileSize is the tile edge used for images that do not set
// one.
const DefaultTileSize = 256

// DefaultQuality is the JPEG quality used when a request has no
// compression quality.
const DefaultQuality = 90

// Image describes one synthetic image.
type Image struct {
	// Width and Height are the full-resolution plane size.
	Width, Height int

	// SizeZ, SizeT and SizeC are the number of focal planes,
	// timepoints and channels.
	SizeZ, SizeT, SizeC int

	// TileSize is the tile edge length.  If zero, uses
	// DefaultTileSize.
	TileSize int

	// Levels is the number of pyramid levels.  Level 0 is full
	// resolution and each further level halves both dimensions.
	// If zero, the image has a single level.
	Levels int
}

// levels returns the number of pyramid levels, at least 1.
func (img Image) levels() int {
	if img.Levels < 1 {
		return 1
	}
	return img.Levels
}

func (img Image) tileSize() int {
	if img.TileSize <= 0 {
		return DefaultTileSize
	}
	return img.TileSize
}

// Shape describes one synthetic shape mask.  The mask is a filled
// ellipse inscribed in a Width by Height rectangle.
type Shape struct {
	Width, Height int
	Color         color.NRGBA
}

// Renderer answers render requests for a fixed set of images and
// shapes.
type Renderer struct {
	Images map[int64]Image
	Shapes map[int64]Shape
}

// NewDemo creates a renderer with one multi-channel pyramidal image
// and one shape, both with ID 1.
func NewDemo() *Renderer {
	return &Renderer{
		Images: map[int64]Image{
			1: {
				Width:    1024,
				Height:   1024,
				SizeZ:    5,
				SizeT:    3,
				SizeC:    3,
				TileSize: 256,
				Levels:   3,
			},
		},
		Shapes: map[int64]Shape{
			1: {
				Width:  64,
				Height: 48,
				Color:  color.NRGBA{R: 0xff, G: 0xff, A: 0xff},
			},
		},
	}
}

// Tasks returns the renderer's tasks keyed by worker address, for use
// as worker.Worker.Tasks.
func (r *Renderer) Tasks() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		dispatch.ImageRegionAddress: r.RenderImageRegion,
		dispatch.ShapeMaskAddress:   r.RenderShapeMask,
	}
}

// RenderImageRegion decodes an image region context and returns the
// encoded image.
func (r *Renderer) RenderImageRegion(ctx context.Context, body []byte) ([]byte, error) {
	irc, err := region.DecodeImageRegionCtx(body)
	if err != nil {
		return nil, dispatch.Fail(http.StatusBadRequest, "undecodable image region context: %v", err)
	}
	if irc.SessionKey == "" {
		return nil, dispatch.Fail(http.StatusForbidden, "no session")
	}
	img, present := r.Images[irc.ImageID]
	if !present {
		return nil, dispatch.Fail(http.StatusNotFound, "image %v not found", irc.ImageID)
	}
	plane, err := planeFor(ctx, img, irc)
	if err != nil {
		return nil, err
	}
	return encode(plane, irc.Format, irc.CompressionQuality)
}

// RenderShapeMask decodes a shape mask context and returns the mask
// as a PNG.
func (r *Renderer) RenderShapeMask(ctx context.Context, body []byte) ([]byte, error) {
	smc, err := region.DecodeShapeMaskCtx(body)
	if err != nil {
		return nil, dispatch.Fail(http.StatusBadRequest, "undecodable shape mask context: %v", err)
	}
	if smc.SessionKey == "" {
		return nil, dispatch.Fail(http.StatusForbidden, "no session")
	}
	shape, present := r.Shapes[smc.ShapeID]
	if !present {
		return nil, dispatch.Fail(http.StatusNotFound, "shape %v not found", smc.ShapeID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return encode(mask(shape), region.FormatPNG, nil)
}
