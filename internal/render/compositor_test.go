package render

import (
	"image"
	"testing"
	"time"

	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/state"
	"github.com/protoforge/neonhud/internal/theme"
)

func populatedSnapshot() *state.Snapshot {
	temp := 52.3
	lat, lon, speed := 37.7749, -122.4194, 1.2

	return &state.Snapshot{
		GPS: state.GPSSample{Latitude: &lat, Longitude: &lon, SpeedMS: &speed},
		IMU: &state.IMUSample{Heading: 90, Pitch: 2, Roll: -1},
		Metrics: state.SystemMetrics{
			CPUPercent:  45,
			RAMPercent:  62,
			TempCelsius: &temp,
			NetTxKiB:    2048,
			NetRxKiB:    4096,
		},
		Networks: []state.Device{
			{SSID: "HomeNet", SignalDBm: -50, Channel: 6, Band: rf.Band24, Security: rf.SecuritySecured,
				Class: rf.ClassRouter, DistanceM: 7542, Colour: theme.ColorFor("HomeNet")},
			{SSID: "DJI-Mavic-Air", SignalDBm: -60, Channel: 149, Band: rf.Band58, Security: rf.SecurityOpen,
				Class: rf.ClassDrone, DistanceM: 9943, Colour: theme.ColorFor("DJI-Mavic-Air")},
		},
		Directions: map[string]state.Direction{
			"HomeNet":       {SSID: "HomeNet", BearingDeg: 85, Confidence: 0.8},
			"DJI-Mavic-Air": {SSID: "DJI-Mavic-Air", BearingDeg: 120, Confidence: 0.6},
		},
		Audio: sineFrame(1024, 6),
	}
}

func TestComposePaintsOverlay(t *testing.T) {
	c, err := NewCompositor("")
	if err != nil {
		t.Fatal(err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	c.Compose(img, populatedSnapshot(), time.Now())

	changed := 0
	for _, p := range img.Pix {
		if p != 0 {
			changed++
		}
	}
	if changed == 0 {
		t.Fatal("composing a populated snapshot painted nothing")
	}
}

func TestComposeEmptySnapshot(t *testing.T) {
	c, err := NewCompositor("")
	if err != nil {
		t.Fatal(err)
	}

	// A cold-start snapshot must render placeholders without panicking.
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	snap := &state.Snapshot{
		ByInterface: map[string][]state.Device{},
		Directions:  map[string]state.Direction{},
	}
	c.Compose(img, snap, time.Now())
}

func TestNewCompositorMissingFont(t *testing.T) {
	if _, err := NewCompositor("/nonexistent/font.ttf"); err == nil {
		t.Error("expected an error for an unreadable font path")
	}
}
