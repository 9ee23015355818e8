package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/state"
	"github.com/protoforge/neonhud/internal/theme"
)

const (
	fontDPI  = 72
	fontSize = 14

	barHeightPx   = 60
	iconSizePx    = 24
	stackSpacing  = 30
	compassRadius = 40
	listEntryPx   = 70
	audioRadiusPx = 120
)

// Compositor rasterises the overlay onto a camera frame. It owns the
// rotation index and the audio visualizer; it runs only on the render
// goroutine.
type Compositor struct {
	face    font.Face
	rotator *Rotator
	viz     *Visualizer
}

// NewCompositor loads the overlay font from fontPath. An empty path uses
// the built-in bitmap face; a path that cannot be read or parsed as a
// font is an error.
func NewCompositor(fontPath string) (*Compositor, error) {
	c := &Compositor{
		face:    basicfont.Face7x13,
		rotator: NewRotator(),
		viz:     NewVisualizer(),
	}

	if fontPath != "" {
		data, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("reading overlay font: %w", err)
		}
		parsed, err := freetype.ParseFont(data)
		if err != nil {
			return nil, fmt.Errorf("parsing overlay font: %w", err)
		}
		c.face = truetype.NewFace(parsed, &truetype.Options{
			Size: fontSize,
			DPI:  fontDPI,
		})
	}

	return c, nil
}

// Compose draws the full overlay for one snapshot onto img.
func (c *Compositor) Compose(img *image.RGBA, snap *state.Snapshot, now time.Time) {
	heading, headingSource := snap.Heading()

	c.drawHeadingBar(img, heading, headingSource, snap)
	c.drawMetricsPanel(img, snap.Metrics)
	c.drawGPSPanel(img, snap, heading, headingSource)
	c.drawNetworkList(img, snap, now)
	c.drawCompass(img, heading, snap)
	c.drawAudioBars(img, snap.Audio, now)
}

// drawHeadingBar renders the degree scale across the top with the directed
// device stacks above it.
func (c *Compositor) drawHeadingBar(img *image.RGBA, heading float64, source state.HeadingSource, snap *state.Snapshot) {
	bounds := img.Bounds()
	barWidth := bounds.Dx() * 8 / 10
	barX := (bounds.Dx() - barWidth) / 2
	barY := 10

	shade(img, image.Rect(barX, barY, barX+barWidth, barY+barHeightPx))
	strokeRect(img, image.Rect(barX, barY, barX+barWidth, barY+barHeightPx), theme.NeonBlue)

	pxPerDeg := float64(barWidth) / (2 * BarHalfWidthDeg)
	scaleY := barY + barHeightPx - 15

	// Tick marks every 5°, labels every 10°.
	for offset := -60; offset <= 60; offset += 5 {
		x := barX + int((float64(offset)+BarHalfWidthDeg)*pxPerDeg)
		tick := 5
		if offset%10 == 0 {
			tick = 10
			label := fmt.Sprintf("%03d", int(rf.NormalizeDegrees(heading+float64(offset))))
			c.drawText(img, label, x-10, scaleY-14, theme.NeonBlue)
		}
		vline(img, x, scaleY-tick, scaleY, theme.NeonBlue)
	}

	// Cardinal markers within the visible range.
	for i, label := range []string{"N", "E", "S", "W"} {
		offset := RelativeOffset(float64(i*90), heading)
		if math.Abs(offset) <= BarHalfWidthDeg {
			x := barX + int((offset+BarHalfWidthDeg)*pxPerDeg)
			c.drawText(img, label, x-4, barY+25, theme.NeonPink)
		}
	}

	// Current heading indicator and readout.
	centerX := barX + barWidth/2
	vline(img, centerX, barY+5, barY+barHeightPx-5, theme.NeonGreen)
	readout := fmt.Sprintf("%03d", int(heading))
	if source == state.HeadingNone {
		readout += "?"
	}
	c.drawText(img, readout, centerX-12, barY+20, theme.NeonGreen)

	// Device stacks above the bar with leader lines to their true
	// offsets.
	for _, stack := range HeadingBarStacks(snap.Networks, snap.Directions, heading) {
		stackX := barX + int((stack.MeanOffsetDeg+BarHalfWidthDeg)*pxPerDeg)
		for i, slot := range stack.Slots {
			iconY := barY - 15 - i*stackSpacing
			if iconY < iconSizePx/2 {
				break
			}

			c.drawIcon(img, theme.IconFor(slot.Device.Class), stackX, iconY, slot.Device.Colour)
			if len(stack.Slots) > 1 {
				trueX := barX + int((slot.OffsetDeg+BarHalfWidthDeg)*pxPerDeg)
				line(img, stackX, iconY+iconSizePx/2, trueX, scaleY, slot.Device.Colour)
			}
			if slot.Device.DistanceM > 0 {
				c.drawText(img, FormatDistance(slot.Device.DistanceM), stackX-14, iconY+iconSizePx/2+12, slot.Device.Colour)
			}
		}
	}
}

func (c *Compositor) drawMetricsPanel(img *image.RGBA, m state.SystemMetrics) {
	x, y, spacing := 30, 90, 25

	c.drawText(img, fmt.Sprintf("CPU: %.0f%%", m.CPUPercent), x, y, theme.NeonPink)
	c.drawText(img, fmt.Sprintf("RAM: %.0f%%", m.RAMPercent), x, y+spacing, theme.NeonGreen)

	temp := PlaceholderUnavailable
	if m.TempCelsius != nil {
		temp = fmt.Sprintf("%.1fC", *m.TempCelsius)
	}
	c.drawText(img, "Temp: "+temp, x, y+spacing*2, theme.NeonOrange)

	c.drawText(img, "Net Tx: "+humanize.IBytes(uint64(m.NetTxKiB*1024)), x, y+spacing*3, theme.NeonBlue)
	c.drawText(img, "Net Rx: "+humanize.IBytes(uint64(m.NetRxKiB*1024)), x, y+spacing*4, theme.NeonPurple)
}

func (c *Compositor) drawGPSPanel(img *image.RGBA, snap *state.Snapshot, heading float64, source state.HeadingSource) {
	x, y, spacing := 30, 230, 25

	if source != state.HeadingNone {
		c.drawText(img, fmt.Sprintf("Heading: %.1f", heading), x, y, theme.NeonGreen)
	} else {
		c.drawText(img, "Heading: "+PlaceholderUnavailable, x, y, theme.NeonGreen)
	}

	gps := snap.GPS
	if gps.Latitude == nil && gps.Longitude == nil {
		c.drawText(img, PlaceholderGPS, x, y+spacing, theme.NeonBlue)
		return
	}

	if gps.Latitude != nil {
		c.drawText(img, fmt.Sprintf("Lat: %.6f", *gps.Latitude), x, y+spacing, theme.NeonBlue)
	}
	if gps.Longitude != nil {
		c.drawText(img, fmt.Sprintf("Lon: %.6f", *gps.Longitude), x, y+spacing*2, theme.NeonBlue)
	}
	if gps.SpeedMS != nil {
		c.drawText(img, fmt.Sprintf("Speed: %.2f m/s", *gps.SpeedMS), x, y+spacing*3, theme.NeonBlue)
	}
}

// drawNetworkList renders the rotating device list down the right edge.
func (c *Compositor) drawNetworkList(img *image.RGBA, snap *state.Snapshot, now time.Time) {
	bounds := img.Bounds()
	listX := bounds.Dx() - 330
	listY := 100

	if len(snap.Networks) == 0 {
		c.drawText(img, PlaceholderWiFi, listX, listY, theme.NeonBlue)
		return
	}

	for i, d := range c.rotator.Visible(snap.Networks, now) {
		entryY := listY + i*listEntryPx

		fillRect(img, image.Rect(listX-10, entryY-5, listX-6, entryY+listEntryPx-10), d.Colour)
		c.drawIcon(img, theme.IconFor(d.Class), listX+12, entryY+10, d.Colour)

		label := d.SSID
		if label == "" {
			label = "<hidden>"
		}
		if len(label) > 20 {
			label = label[:20]
		}
		if d.DistanceM > 0 {
			label += " " + FormatDistance(d.DistanceM)
		}
		c.drawText(img, label, listX+34, entryY+10, d.Colour)
		c.drawText(img, fmt.Sprintf("Ch %d  %s  %s", d.Channel, d.Band, d.Security), listX+34, entryY+28, theme.NeonBlue)

		// Signal bar with the dBm value alongside.
		percent := rf.SignalPercent(d.SignalDBm)
		barRect := image.Rect(listX+34, entryY+38, listX+134, entryY+46)
		fillRect(img, barRect, color.RGBA{R: 50, G: 50, B: 50, A: 255})
		fillWidth := int(float64(barRect.Dx()) * percent / 100)
		fillRect(img, image.Rect(barRect.Min.X, barRect.Min.Y, barRect.Min.X+fillWidth, barRect.Max.Y), theme.SignalBarColor(percent))
		strokeRect(img, barRect, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		c.drawText(img, fmt.Sprintf("%.0f dBm", d.SignalDBm), barRect.Max.X+10, barRect.Max.Y, theme.NeonGreen)
	}
}

// drawCompass renders the ring, needle and compass stacks bottom left.
func (c *Compositor) drawCompass(img *image.RGBA, heading float64, snap *state.Snapshot) {
	bounds := img.Bounds()
	cx, cy := 100, bounds.Dy()-120

	circle(img, cx, cy, compassRadius, theme.NeonBlue)

	cardinals := []struct {
		label string
		deg   float64
	}{{"N", 0}, {"E", 90}, {"S", 180}, {"W", 270}}
	for _, card := range cardinals {
		rad := (card.deg - 90) * math.Pi / 180
		x := cx + int(float64(compassRadius+12)*math.Cos(rad))
		y := cy + int(float64(compassRadius+12)*math.Sin(rad))
		c.drawText(img, card.label, x-4, y+4, theme.NeonPink)
	}

	// Needle points at the current heading, 0° up.
	rad := (heading - 90) * math.Pi / 180
	nx := cx + int(float64(compassRadius)*math.Cos(rad))
	ny := cy + int(float64(compassRadius)*math.Sin(rad))
	line(img, cx, cy, nx, ny, theme.NeonGreen)

	// Directed devices on the ring, stacked labels outside it.
	for _, stack := range CompassStacks(snap.Networks, snap.Directions, heading) {
		for i, slot := range stack.Slots {
			bearing := rf.NormalizeDegrees(heading + slot.OffsetDeg)
			srad := (bearing - 90) * math.Pi / 180
			rx := cx + int(float64(compassRadius-5)*math.Cos(srad))
			ry := cy + int(float64(compassRadius-5)*math.Sin(srad))
			c.drawIcon(img, theme.IconFor(slot.Device.Class), rx, ry, slot.Device.Colour)

			labelY := cy - compassRadius - 30 + i*16
			label := slot.Device.SSID
			if slot.Device.DistanceM > 0 {
				label += " " + FormatDistance(slot.Device.DistanceM)
			}
			c.drawText(img, label, cx+compassRadius+16, labelY, slot.Device.Colour)
			if len(stack.Slots) > 1 {
				line(img, cx+compassRadius+12, labelY-4, rx, ry, slot.Device.Colour)
			}
		}
	}
}

func (c *Compositor) drawAudioBars(img *image.RGBA, frame state.AudioFrame, now time.Time) {
	bars := c.viz.Bars(frame, now)
	if bars == nil {
		return
	}

	bounds := img.Bounds()
	cx, cy := bounds.Dx()/2, bounds.Dy()/2

	step := 2 * math.Pi / float64(len(bars))
	for i, amplitude := range bars {
		length := amplitude * 80
		angle := float64(i) * step
		x1 := cx + int(audioRadiusPx*math.Cos(angle))
		y1 := cy + int(audioRadiusPx*math.Sin(angle))
		x2 := cx + int((audioRadiusPx+length)*math.Cos(angle))
		y2 := cy + int((audioRadiusPx+length)*math.Sin(angle))
		line(img, x1, y1, x2, y2, theme.Gradient(amplitude))
	}
}

// drawIcon renders the class glyph centred at (x, y) inside a ring of the
// device colour.
func (c *Compositor) drawIcon(img *image.RGBA, icon theme.Icon, x, y int, border color.RGBA) {
	half := iconSizePx / 2
	grey := color.RGBA{R: 200, G: 200, B: 200, A: 255}

	circle(img, x, y, half+3, border)

	switch icon {
	case theme.IconRouter:
		// Base with arcs above it.
		fillRect(img, image.Rect(x-half/2, y+half/3, x+half/2, y+half/2), grey)
		for i := 1; i <= 3; i++ {
			arcUp(img, x, y, half/3*i, grey)
		}
	case theme.IconDrone:
		// Hub, four arms, four rotors.
		fillRect(img, image.Rect(x-2, y-2, x+2, y+2), grey)
		for _, d := range [][2]int{{-half, -half}, {half, -half}, {-half, half}, {half, half}} {
			line(img, x, y, x+d[0], y+d[1], grey)
			circle(img, x+d[0], y+d[1], half/4, grey)
		}
	default:
		for i := 1; i <= 3; i++ {
			circle(img, x, y, half/3*i, grey)
		}
		fillRect(img, image.Rect(x-1, y-1, x+1, y+1), grey)
	}
}

func (c *Compositor) drawText(img *image.RGBA, s string, x, y int, col color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// Raster primitives. The overlay only needs lines, rectangles and circles;
// everything else is text.

func line(img *image.RGBA, x1, y1, x2, y2 int, col color.Color) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx + dy

	for {
		setInBounds(img, x1, y1, col)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func vline(img *image.RGBA, x, y1, y2 int, col color.Color) {
	for y := y1; y <= y2; y++ {
		setInBounds(img, x, y, col)
	}
}

func fillRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

func strokeRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	for x := r.Min.X; x <= r.Max.X; x++ {
		setInBounds(img, x, r.Min.Y, col)
		setInBounds(img, x, r.Max.Y, col)
	}
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		setInBounds(img, r.Min.X, y, col)
		setInBounds(img, r.Max.X, y, col)
	}
}

// shade darkens a region to back overlay text, replacing each pixel with
// 30% of its value.
func shade(img *image.RGBA, r image.Rectangle) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = img.Pix[i] * 3 / 10
			img.Pix[i+1] = img.Pix[i+1] * 3 / 10
			img.Pix[i+2] = img.Pix[i+2] * 3 / 10
		}
	}
}

func circle(img *image.RGBA, cx, cy, r int, col color.Color) {
	x, y := r, 0
	err := 1 - r
	for x >= y {
		for _, p := range [][2]int{
			{cx + x, cy + y}, {cx - x, cy + y}, {cx + x, cy - y}, {cx - x, cy - y},
			{cx + y, cy + x}, {cx - y, cy + x}, {cx + y, cy - x}, {cx - y, cy - x},
		} {
			setInBounds(img, p[0], p[1], col)
		}
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

// arcUp draws the upper half of a circle, used by the router icon waves.
func arcUp(img *image.RGBA, cx, cy, r int, col color.Color) {
	for deg := 180; deg <= 360; deg += 4 {
		rad := float64(deg) * math.Pi / 180
		setInBounds(img, cx+int(float64(r)*math.Cos(rad)), cy+int(float64(r)*math.Sin(rad)), col)
	}
}

func setInBounds(img *image.RGBA, x, y int, col color.Color) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, col)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
