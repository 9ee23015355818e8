// Package render holds the layout primitives the drawing layer consumes:
// heading-bar and compass stacking, graceful-degradation placeholders, the
// list rotation window and the audio spectrum.
package render

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/protoforge/neonhud/internal/state"
)

// Placeholders the drawing layer emits when a data family is null or its
// producer is disabled.
const (
	PlaceholderGPS         = "GPS: N/A"
	PlaceholderWiFi        = "Wi-Fi: N/A"
	PlaceholderUnavailable = "N/A"
)

const (
	// BarGroupingDeg merges heading-bar icons whose relative offsets
	// differ by no more than this into one stack.
	BarGroupingDeg = 5.0

	// CompassGroupingDeg is the wider merge threshold on the compass
	// ring.
	CompassGroupingDeg = 15.0

	// BarHalfWidthDeg is the visible half-range of the heading bar;
	// devices beyond it are off-bar.
	BarHalfWidthDeg = 60.0

	// MinConfidence gates direction estimates off the displays.
	MinConfidence = 0.3
)

// RelativeOffset maps an absolute bearing onto the signed offset from the
// current heading, in (-180, 180].
func RelativeOffset(bearingDeg, headingDeg float64) float64 {
	return math.Mod(bearingDeg-headingDeg+540, 360) - 180
}

// Slot is one device placed on a track, carrying its true angular offset
// for the leader line back to the bar.
type Slot struct {
	Device     state.Device
	OffsetDeg  float64
	Confidence float64
}

// Stack is a group of devices too close in bearing to draw side by side.
// Slots are ordered strongest signal first; the topmost slot sits on the
// track at MeanOffsetDeg and the rest stack outward perpendicular to it.
type Stack struct {
	MeanOffsetDeg float64
	Slots         []Slot
}

// HeadingBarStacks lays out the directed devices visible on the heading
// bar for the given heading.
func HeadingBarStacks(devices []state.Device, directions map[string]state.Direction, headingDeg float64) []Stack {
	slots := directedSlots(devices, directions, headingDeg)

	visible := slots[:0]
	for _, s := range slots {
		if math.Abs(s.OffsetDeg) <= BarHalfWidthDeg {
			visible = append(visible, s)
		}
	}
	return buildStacks(visible, BarGroupingDeg)
}

// CompassStacks lays out the directed devices around the full compass
// ring.
func CompassStacks(devices []state.Device, directions map[string]state.Direction, headingDeg float64) []Stack {
	return buildStacks(directedSlots(devices, directions, headingDeg), CompassGroupingDeg)
}

func directedSlots(devices []state.Device, directions map[string]state.Direction, headingDeg float64) []Slot {
	var slots []Slot
	for _, d := range devices {
		dir, ok := directions[d.SSID]
		if !ok || dir.Confidence <= MinConfidence {
			continue
		}
		slots = append(slots, Slot{
			Device:     d,
			OffsetDeg:  RelativeOffset(dir.BearingDeg, headingDeg),
			Confidence: dir.Confidence,
		})
	}
	return slots
}

// buildStacks sorts slots by offset and merges neighbours within the
// grouping threshold. Within a stack, the strongest signal comes first.
func buildStacks(slots []Slot, groupingDeg float64) []Stack {
	if len(slots) == 0 {
		return nil
	}

	sort.SliceStable(slots, func(a, b int) bool {
		return slots[a].OffsetDeg < slots[b].OffsetDeg
	})

	var stacks []Stack
	current := []Slot{slots[0]}
	for _, s := range slots[1:] {
		if s.OffsetDeg-current[len(current)-1].OffsetDeg <= groupingDeg {
			current = append(current, s)
			continue
		}
		stacks = append(stacks, finishStack(current))
		current = []Slot{s}
	}
	stacks = append(stacks, finishStack(current))
	return stacks
}

func finishStack(slots []Slot) Stack {
	var sum float64
	for _, s := range slots {
		sum += s.OffsetDeg
	}

	ordered := append([]Slot(nil), slots...)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Device.SignalDBm > ordered[b].Device.SignalDBm
	})

	return Stack{
		MeanOffsetDeg: sum / float64(len(slots)),
		Slots:         ordered,
	}
}

// FormatDistance renders a distance estimate for the overlay: metres below
// a kilometre, tenths of kilometres above.
func FormatDistance(m float64) string {
	if m < 1000 {
		return fmt.Sprintf("~%dm", int(m))
	}
	return fmt.Sprintf("~%.1fkm", m/1000)
}

const (
	// RotationWindow is how many list entries are visible at once.
	RotationWindow = 8

	// RotationInterval is how often the visible window advances when the
	// list overflows.
	RotationInterval = 3 * time.Second
)

// Rotator owns the list rotation index. It belongs to the render goroutine
// and is not shared.
type Rotator struct {
	index int
	last  time.Time
}

func NewRotator() *Rotator {
	return &Rotator{}
}

// Visible returns the current window of the device list, advancing the
// window by one entry per interval while the list overflows it.
func (r *Rotator) Visible(devices []state.Device, now time.Time) []state.Device {
	if len(devices) <= RotationWindow {
		r.index = 0
		r.last = now
		return devices
	}

	if r.last.IsZero() {
		r.last = now
	}
	for now.Sub(r.last) >= RotationInterval {
		r.index = (r.index + 1) % len(devices)
		r.last = r.last.Add(RotationInterval)
	}

	window := make([]state.Device, 0, RotationWindow)
	for i := 0; i < RotationWindow; i++ {
		window = append(window, devices[(r.index+i)%len(devices)])
	}
	return window
}
