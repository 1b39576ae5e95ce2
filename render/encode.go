// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package render

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/janelia-flyem/go/go.image/tiff"
	"github.com/omero-ms/go-imageregion/region"
)

// jpegQuality converts a compression quality between 0 and 1 into a
// JPEG quality between 1 and 100.
func jpegQuality(q *float64) int {
	if q == nil {
		return DefaultQuality
	}
	quality := int(*q*100 + 0.5)
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}

// encode writes an image in an output format.  An empty format is
// PNG.
func encode(img image.Image, format string, quality *float64) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case region.FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(quality)})
	case region.FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
