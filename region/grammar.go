// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package region

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/ugorji/go/codec"
)

// Rendering modes, as they appear in the "m" field of a render
// context.
const (
	ModeRGB       = "rgb"
	ModeGreyscale = "greyscale"
)

// Tile identifies a single tile in an image pyramid.  Width and
// Height are never filled in from a query string; the actual tile
// extent comes from the image server's tile grid.
type Tile struct {
	Resolution int `json:"resolution"`
	X          int `json:"x"`
	Y          int `json:"y"`
	Width      int `json:"width"`
	Height     int `json:"height"`
}

// String returns the tile in query string form.  ParseTile(t.String())
// returns t with Width and Height cleared.
func (t Tile) String() string {
	s := fmt.Sprintf("%d,%d,%d", t.Resolution, t.X, t.Y)
	if t.Width != 0 || t.Height != 0 {
		s += fmt.Sprintf(",%d,%d", t.Width, t.Height)
	}
	return s
}

// Region is an axis-aligned rectangle within a single plane.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String returns the region in query string form.
func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// Window is an intensity window, minimum then maximum.  It is
// encoded as a two-element JSON array.
type Window [2]float64

// Min returns the lower bound of the window.
func (w Window) Min() float64 { return w[0] }

// Max returns the upper bound of the window.
func (w Window) Max() float64 { return w[1] }

// ReverseMap is the intensity reversal codomain transform.
type ReverseMap struct {
	Enabled bool `json:"enabled"`
}

// CodomainMap holds the codomain transforms for one channel.  Only
// reversal is currently understood; other keys are dropped.
type CodomainMap struct {
	Reverse *ReverseMap `json:"reverse,omitempty"`
}

// ParseTile parses a "resolution,x,y" tile specification.  Any
// further components are accepted and ignored.
func ParseTile(s string) (Tile, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 3 {
		return Tile{}, parseError("tile", s, ErrTokenCount)
	}
	var values [3]int
	for i := range values {
		n, err := parseNonNegative(parts[i])
		if err != nil {
			return Tile{}, parseError("tile", s, err)
		}
		values[i] = n
	}
	return Tile{Resolution: values[0], X: values[1], Y: values[2]}, nil
}

// ParseRegion parses an "x,y,width,height" region specification.
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, parseError("region", s, ErrTokenCount)
	}
	var values [4]int
	for i := range values {
		n, err := parseNonNegative(parts[i])
		if err != nil {
			return Region{}, parseError("region", s, err)
		}
		values[i] = n
	}
	return Region{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, nil
}

// ParseChannels parses a channel list.  The three returned slices
// have one entry per channel, in the order given.
func ParseChannels(s string) (channels []int, windows []Window, colors []string, err error) {
	entries := strings.Split(s, ",")
	channels = make([]int, 0, len(entries))
	windows = make([]Window, 0, len(entries))
	colors = make([]string, 0, len(entries))
	for _, entry := range entries {
		var (
			channel int
			window  Window
			color   string
		)
		channel, window, color, err = parseChannel(entry)
		if err != nil {
			return nil, nil, nil, parseError("c", entry, err)
		}
		channels = append(channels, channel)
		windows = append(windows, window)
		colors = append(colors, color)
	}
	return
}

func parseChannel(entry string) (channel int, window Window, color string, err error) {
	index, rest, found := strings.Cut(entry, "|")
	if !found {
		err = ErrSeparator{Separator: "|"}
		return
	}
	channel, err = strconv.Atoi(index)
	if err != nil {
		err = ErrNotInteger
		return
	}
	bounds, color, found := strings.Cut(rest, "$")
	if !found {
		err = ErrSeparator{Separator: "$"}
		return
	}
	lo, hi, found := strings.Cut(bounds, ":")
	if !found {
		err = ErrSeparator{Separator: ":"}
		return
	}
	if window[0], err = parseFinite(lo); err != nil {
		return
	}
	if window[1], err = parseFinite(hi); err != nil {
		return
	}
	if !isHexColor(color) {
		err = ErrColor
	}
	return
}

// ParseMaps parses a JSON array of codomain maps.  An empty string
// produces an empty (non-nil) list.
func ParseMaps(s string) ([]CodomainMap, error) {
	maps := []CodomainMap{}
	if strings.TrimSpace(s) == "" {
		return maps, nil
	}

	var raw []interface{}
	decoder := codec.NewDecoderBytes([]byte(s), jsonHandle())
	if err := decoder.Decode(&raw); err != nil {
		return nil, parseError("maps", s, err)
	}
	for _, item := range raw {
		if _, isObject := item.(map[string]interface{}); !isObject {
			return nil, parseError("maps", s, errors.New("codomain map is not an object"))
		}
		var m CodomainMap
		config := mapstructure.DecoderConfig{
			TagName: "json",
			Result:  &m,
		}
		md, err := mapstructure.NewDecoder(&config)
		if err == nil {
			err = md.Decode(item)
		}
		if err != nil {
			return nil, parseError("maps", s, err)
		}
		maps = append(maps, m)
	}
	return maps, nil
}

// ParseMode converts a one-letter rendering mode code to its
// canonical name.
func ParseMode(code string) (string, error) {
	switch code {
	case "c":
		return ModeRGB, nil
	case "g":
		return ModeGreyscale, nil
	default:
		return "", parseError("m", code, ErrUnknownMode)
	}
}

// ParseFormat validates an output format name.
func ParseFormat(s string) (string, error) {
	switch s {
	case FormatJPEG, FormatPNG, FormatTIFF:
		return s, nil
	default:
		return "", parseError("format", s, ErrUnknownFormat)
	}
}

// parseNonNegative parses a whole token as a non-negative integer.
func parseNonNegative(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrNotInteger
	}
	if n < 0 {
		return 0, ErrNegative
	}
	return n, nil
}

// parseFinite parses a whole token as a finite float.
func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotNumber
	}
	return f, nil
}

func isHexColor(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			continue
		default:
			return false
		}
	}
	return true
}

// jsonHandle returns the codec handle used for every JSON encoding in
// this package.  Generic objects decode as map[string]interface{}.
func jsonHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return h
}
