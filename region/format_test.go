// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package region

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"tif":  "image/tiff",
		"":     "application/octet-stream",
		"gif":  "application/octet-stream",
		"JPEG": "application/octet-stream",
	}
	for format, mediaType := range tests {
		assert.Equal(t, mediaType, ContentType(format), format)
		ctx := &ImageRegionCtx{Format: format}
		assert.Equal(t, mediaType, ctx.ContentType(), format)
	}
}

func TestShapeMaskContentType(t *testing.T) {
	var r Renderable = &ShapeMaskCtx{}
	assert.Equal(t, "image/png", r.ContentType())
}
