// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package region defines the render contexts that the image region
// gateway sends to rendering workers, and the compact query string
// grammars they are built from.
//
// Query String Grammar
//
// A tile is "resolution,x,y", optionally followed by further
// comma-separated components that are ignored:
//
//     tile=0,0,1,1024,1024
//
// A region is exactly four non-negative integers "x,y,width,height":
//
//     region=1,2,3,4
//
// A channel list has one entry per channel, each of the form
// "channel|min:max$RRGGBB".  A negative channel index marks a channel
// that is parsed but disabled for compositing; the sign is kept as is.
//
//     c=-1|0:65535$0000FF,2|1755:51199$00FF00
//
// Codomain maps are a JSON array with one object per channel:
//
//     maps=[{"reverse":{"enabled":false}}]
//
// The rendering mode is "c" (color, "rgb") or "g" ("greyscale").
//
// Wire Format
//
// Contexts are sent to workers as JSON, using the field names of the
// ImageRegionCtx and ShapeMaskCtx types.  Encode followed by
// DecodeImageRegionCtx (or DecodeShapeMaskCtx) reproduces an equal
// value, and encoding is idempotent.
package region
