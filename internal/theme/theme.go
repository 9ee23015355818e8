// Package theme holds the neon overlay palette and the per-device colour
// and icon policy. Colour assignment must be stable across process restarts
// so a device keeps its colour between sessions; everything here is
// deterministic.
package theme

import (
	"hash/fnv"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/protoforge/neonhud/internal/rf"
)

// Fixed UI anchor colours.
var (
	NeonPink   = color.RGBA{R: 255, G: 20, B: 147, A: 255}
	NeonGreen  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	NeonOrange = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	NeonBlue   = color.RGBA{R: 0, G: 191, B: 255, A: 255}
	NeonPurple = color.RGBA{R: 128, G: 0, B: 128, A: 255}
)

// PaletteSize is the number of distinct device colours.
const PaletteSize = 12

// palette is the fixed ordered device palette: twelve hues at 85%
// saturation, spaced 30 degrees apart around the colour wheel.
var palette [PaletteSize]color.RGBA

func init() {
	for i := range palette {
		c := colorful.Hsv(float64(i)*30, 0.85, 1)
		r, g, b := c.RGB255()
		palette[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
}

// Palette returns a copy of the device palette in order.
func Palette() [PaletteSize]color.RGBA {
	return palette
}

// ColorFor returns the palette colour assigned to an identifier. FNV-1a is
// seedless, so the same identifier maps to the same colour in every run.
func ColorFor(ssid string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(ssid))
	return palette[h.Sum32()%PaletteSize]
}

// Icon identifies the glyph the drawing layer renders for a device class.
type Icon int

const (
	IconUnknown Icon = iota
	IconRouter
	IconDrone
)

// IconFor maps a device class to its icon atom.
func IconFor(class rf.Class) Icon {
	switch class {
	case rf.ClassRouter:
		return IconRouter
	case rf.ClassDrone:
		return IconDrone
	default:
		return IconUnknown
	}
}

// SignalBarColor picks the fill colour for a signal strength bar: green
// above two thirds, orange above one third, pink below.
func SignalBarColor(percent float64) color.RGBA {
	switch {
	case percent > 66:
		return NeonGreen
	case percent > 33:
		return NeonOrange
	default:
		return NeonPink
	}
}

// Gradient maps a normalised value [0, 1] onto a magenta-to-blue sweep used
// by the audio visualizer bars.
func Gradient(normalized float64) color.RGBA {
	if normalized < 0 {
		normalized = 0
	} else if normalized > 1 {
		normalized = 1
	}
	c := colorful.Hsv(300-normalized*60, 1, 1)
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
