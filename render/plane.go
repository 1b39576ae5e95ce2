// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package render

// This file turns an image region context into pixels.

import (
	"context"
	"image"
	"image/color"
	"net/http"
	"strconv"

	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/omero-ms/go-imageregion/region"
)

// channel is one active channel after applying the request settings.
type channel struct {
	index   int
	window  region.Window
	color   color.NRGBA
	reverse bool
}

// bounds returns the rectangle a context selects, in the coordinates
// of its pyramid level, and the level's scale factor.
func bounds(img Image, irc *region.ImageRegionCtx) (image.Rectangle, int, error) {
	if irc.Tile != nil {
		tile := irc.Tile
		if tile.Resolution >= img.levels() {
			return image.Rectangle{}, 0, dispatch.Fail(http.StatusBadRequest,
				"resolution %v out of range", tile.Resolution)
		}
		scale := 1 << uint(tile.Resolution)
		level := image.Rect(0, 0, img.Width/scale, img.Height/scale)
		w, h := tile.Width, tile.Height
		if w == 0 {
			w = img.tileSize()
		}
		if h == 0 {
			h = img.tileSize()
		}
		rect := image.Rect(tile.X*w, tile.Y*h, (tile.X+1)*w, (tile.Y+1)*h).Intersect(level)
		if rect.Empty() {
			return image.Rectangle{}, 0, dispatch.Fail(http.StatusBadRequest,
				"tile %v out of range", tile)
		}
		return rect, scale, nil
	}

	reg := irc.Region
	if reg == nil {
		return image.Rectangle{}, 0, dispatch.Fail(http.StatusBadRequest, "no tile or region")
	}
	full := image.Rect(0, 0, img.Width, img.Height)
	rect := image.Rect(reg.X, reg.Y, reg.X+reg.Width, reg.Y+reg.Height).Intersect(full)
	if rect.Empty() {
		return image.Rectangle{}, 0, dispatch.Fail(http.StatusBadRequest,
			"region %v out of range", reg)
	}
	return rect, 1, nil
}

// activeChannels returns the channels a context turns on.  With no
// channel settings the first channel is shown in white over the full
// intensity range.
func activeChannels(img Image, irc *region.ImageRegionCtx) ([]channel, error) {
	var active []channel
	for i, index := range irc.Channels {
		if index <= 0 {
			continue
		}
		if index > img.SizeC {
			return nil, dispatch.Fail(http.StatusBadRequest, "channel %v out of range", index)
		}
		if i >= len(irc.Windows) || i >= len(irc.Colors) {
			return nil, dispatch.Fail(http.StatusBadRequest, "channel %v has no settings", index)
		}
		c := channel{
			index:  index,
			window: irc.Windows[i],
			color:  parseColor(irc.Colors[i]),
		}
		if i < len(irc.Maps) && irc.Maps[i].Reverse != nil {
			c.reverse = irc.Maps[i].Reverse.Enabled
		}
		active = append(active, c)
	}
	if len(irc.Channels) == 0 {
		active = []channel{{
			index:  1,
			window: region.Window{0, 255},
			color:  color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		}}
	}
	return active, nil
}

// parseColor converts an already validated RRGGBB string.
func parseColor(s string) color.NRGBA {
	v, _ := strconv.ParseUint(s, 16, 32)
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// intensity is the raw synthetic pixel value of a channel, in 0-255.
func intensity(x, y, z, t, c int) float64 {
	return float64((x + y*c + 17*z + 31*t) % 256)
}

// scaled maps a raw value through a channel window into 0-1.
func (c channel) scaled(raw float64) float64 {
	lo, hi := c.window.Min(), c.window.Max()
	var v float64
	switch {
	case hi <= lo:
		if raw >= hi {
			v = 1
		}
	case raw <= lo:
		v = 0
	case raw >= hi:
		v = 1
	default:
		v = (raw - lo) / (hi - lo)
	}
	if c.reverse {
		v = 1 - v
	}
	return v
}

func clamp(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// planeFor renders the pixels a context selects.  Greyscale mode
// averages the active channels; any other mode blends their colors
// additively.
func planeFor(ctx context.Context, img Image, irc *region.ImageRegionCtx) (image.Image, error) {
	if irc.Z >= img.SizeZ || irc.T >= img.SizeT {
		return nil, dispatch.Fail(http.StatusBadRequest,
			"plane z=%v t=%v out of range", irc.Z, irc.T)
	}
	rect, scale, err := bounds(img, irc)
	if err != nil {
		return nil, err
	}
	channels, err := activeChannels(img, irc)
	if err != nil {
		return nil, err
	}

	out := image.Rect(0, 0, rect.Dx(), rect.Dy())
	greyscale := irc.Mode == region.ModeGreyscale
	var (
		grey *image.Gray
		rgba *image.NRGBA
	)
	if greyscale {
		grey = image.NewGray(out)
	} else {
		rgba = image.NewNRGBA(out)
	}

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := rect.Min.X; x < rect.Max.X; x++ {
			var r, g, b, sum float64
			for _, c := range channels {
				v := c.scaled(intensity(x*scale, y*scale, irc.Z, irc.T, c.index))
				sum += v
				r += v * float64(c.color.R)
				g += v * float64(c.color.G)
				b += v * float64(c.color.B)
			}
			px, py := x-rect.Min.X, y-rect.Min.Y
			if greyscale {
				level := 0.0
				if len(channels) > 0 {
					level = 255 * sum / float64(len(channels))
				}
				grey.SetGray(px, py, color.Gray{Y: clamp(level)})
			} else {
				rgba.SetNRGBA(px, py, color.NRGBA{R: clamp(r), G: clamp(g), B: clamp(b), A: 0xff})
			}
		}
	}
	if greyscale {
		return grey, nil
	}
	return rgba, nil
}

// mask draws a shape as a filled ellipse on a transparent background.
func mask(shape Shape) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, shape.Width, shape.Height))
	rx, ry := float64(shape.Width)/2, float64(shape.Height)/2
	for y := 0; y < shape.Height; y++ {
		for x := 0; x < shape.Width; x++ {
			dx := (float64(x) + 0.5 - rx) / rx
			dy := (float64(y) + 0.5 - ry) / ry
			if dx*dx+dy*dy <= 1 {
				img.SetNRGBA(x, y, shape.Color)
			}
		}
	}
	return img
}
