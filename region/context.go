// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package region

import (
	"fmt"
	"net/url"
	"strconv"
)

// Renderable is implemented by both kinds of render context.
type Renderable interface {
	// ContentType returns the MIME type of the rendered output.
	ContentType() string
}

// Defaults holds the values used when a request leaves an optional
// field out.  These come from the gateway configuration.  Zero values
// leave the field empty and let the rendering worker decide.
type Defaults struct {
	// Format is the output format when "format" is absent.
	Format string

	// CompressionQuality is used when "q" is absent.
	CompressionQuality *float64

	// Mode is the canonical rendering mode ("rgb" or
	// "greyscale") used when "m" is absent.
	Mode string
}

// ImageRegionCtx describes one request to render a tile or region of
// a single image plane.  Exactly one of Tile and Region is non-nil.
// Channels, Windows and Colors are parallel; Maps is either empty or
// parallel to them as well.
type ImageRegionCtx struct {
	SessionKey         string        `json:"omeroSessionKey"`
	ImageID            int64         `json:"imageId"`
	Z                  int           `json:"theZ"`
	T                  int           `json:"theT"`
	Tile               *Tile         `json:"tile"`
	Region             *Region       `json:"region"`
	Channels           []int         `json:"channels"`
	Windows            []Window      `json:"windows"`
	Colors             []string      `json:"colors"`
	Maps               []CodomainMap `json:"maps"`
	Mode               string        `json:"m"`
	CompressionQuality *float64      `json:"compressionQuality"`
	Format             string        `json:"format"`
}

// ShapeMaskCtx describes one request to render a shape mask.
type ShapeMaskCtx struct {
	SessionKey         string   `json:"omeroSessionKey"`
	ShapeID            int64    `json:"shapeId"`
	CompressionQuality *float64 `json:"compressionQuality"`
}

// NewImageRegionCtx builds an image region context from query
// parameters, which are expected to include the path parameters
// imageId, theZ and theT.  If a key is repeated, its last value is
// used.  sessionKey is copied as is.  Fields are checked in a fixed
// order and the first failure is returned as a *ContextBuildError.
func NewImageRegionCtx(params url.Values, sessionKey string, defaults Defaults) (*ImageRegionCtx, error) {
	ctx := &ImageRegionCtx{
		SessionKey: sessionKey,
		Channels:   []int{},
		Windows:    []Window{},
		Colors:     []string{},
		Maps:       []CodomainMap{},
		Mode:       defaults.Mode,
		Format:     defaults.Format,
	}
	err := requiredID(params, "imageId", &ctx.ImageID)
	if err == nil {
		err = requiredIndex(params, "theZ", &ctx.Z)
	}
	if err == nil {
		err = requiredIndex(params, "theT", &ctx.T)
	}
	if err == nil {
		err = ctx.setTileOrRegion(params)
	}
	if err == nil {
		err = ctx.setChannels(params)
	}
	if err == nil {
		err = ctx.setMaps(params)
	}
	if value, present := last(params, "m"); present && err == nil {
		ctx.Mode, err = ParseMode(value)
		if err != nil {
			err = buildError("m", err)
		}
	}
	if err == nil {
		ctx.CompressionQuality, err = compressionQuality(params, defaults)
	}
	if value, present := last(params, "format"); present && err == nil {
		ctx.Format, err = ParseFormat(value)
		if err != nil {
			err = buildError("format", err)
		}
	}
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

func (ctx *ImageRegionCtx) setTileOrRegion(params url.Values) error {
	tile, haveTile := last(params, "tile")
	region, haveRegion := last(params, "region")
	switch {
	case haveTile && haveRegion:
		return &ContextBuildError{Field: "tile", Reason: "tile and region are mutually exclusive"}
	case haveTile:
		t, err := ParseTile(tile)
		if err != nil {
			return buildError("tile", err)
		}
		ctx.Tile = &t
	case haveRegion:
		r, err := ParseRegion(region)
		if err != nil {
			return buildError("region", err)
		}
		ctx.Region = &r
	default:
		return &ContextBuildError{Field: "tile", Reason: "one of tile or region is required"}
	}
	return nil
}

func (ctx *ImageRegionCtx) setChannels(params url.Values) error {
	value, _ := last(params, "c")
	if value == "" {
		return nil
	}
	channels, windows, colors, err := ParseChannels(value)
	if err != nil {
		return buildError("c", err)
	}
	ctx.Channels = channels
	ctx.Windows = windows
	ctx.Colors = colors
	return nil
}

func (ctx *ImageRegionCtx) setMaps(params url.Values) error {
	value, _ := last(params, "maps")
	maps, err := ParseMaps(value)
	if err != nil {
		return buildError("maps", err)
	}
	if len(maps) != 0 && len(maps) != len(ctx.Channels) {
		return &ContextBuildError{
			Field:  "maps",
			Reason: fmt.Sprintf("%d codomain maps for %d channels", len(maps), len(ctx.Channels)),
		}
	}
	ctx.Maps = maps
	return nil
}

// NewShapeMaskCtx builds a shape mask context from query parameters,
// which are expected to include the path parameter shapeId.
func NewShapeMaskCtx(params url.Values, sessionKey string, defaults Defaults) (*ShapeMaskCtx, error) {
	ctx := &ShapeMaskCtx{SessionKey: sessionKey}
	err := requiredID(params, "shapeId", &ctx.ShapeID)
	if err == nil {
		ctx.CompressionQuality, err = compressionQuality(params, defaults)
	}
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

// last returns the final value of a possibly repeated query key.
func last(params url.Values, key string) (string, bool) {
	values := params[key]
	if len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

func requiredID(params url.Values, key string, out *int64) error {
	value, present := last(params, key)
	if !present {
		return &ContextBuildError{Field: key, Reason: "required"}
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return buildError(key, parseError(key, value, ErrNotInteger))
	}
	if id <= 0 {
		return buildError(key, parseError(key, value, ErrNotPositive))
	}
	*out = id
	return nil
}

func requiredIndex(params url.Values, key string, out *int) error {
	value, present := last(params, key)
	if !present {
		return &ContextBuildError{Field: key, Reason: "required"}
	}
	n, err := parseNonNegative(value)
	if err != nil {
		return buildError(key, parseError(key, value, err))
	}
	*out = n
	return nil
}

// compressionQuality parses "q" without clamping it.
func compressionQuality(params url.Values, defaults Defaults) (*float64, error) {
	value, present := last(params, "q")
	if !present {
		if defaults.CompressionQuality == nil {
			return nil, nil
		}
		q := *defaults.CompressionQuality
		return &q, nil
	}
	q, err := parseFinite(value)
	if err != nil {
		return nil, buildError("q", parseError("q", value, err))
	}
	return &q, nil
}
