// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package region

// Output formats understood in the "format" field of an image region
// context.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatTIFF = "tif"
)

// Media types of rendered output.
const (
	JPEGMediaType   = "image/jpeg"
	PNGMediaType    = "image/png"
	TIFFMediaType   = "image/tiff"
	BinaryMediaType = "application/octet-stream"
)

// ContentType returns the MIME type for an output format.  Unknown
// formats, including the empty string, are application/octet-stream.
func ContentType(format string) string {
	switch format {
	case FormatJPEG:
		return JPEGMediaType
	case FormatPNG:
		return PNGMediaType
	case FormatTIFF:
		return TIFFMediaType
	default:
		return BinaryMediaType
	}
}

// ContentType returns the MIME type of the rendered region.
func (ctx *ImageRegionCtx) ContentType() string {
	return ContentType(ctx.Format)
}

// ContentType always returns image/png; shape masks have no format
// option.
func (ctx *ShapeMaskCtx) ContentType() string {
	return PNGMediaType
}
