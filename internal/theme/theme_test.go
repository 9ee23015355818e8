package theme

import (
	"testing"

	"github.com/protoforge/neonhud/internal/rf"
)

func TestColorForStable(t *testing.T) {
	ssids := []string{"HomeNet", "DJI-Mavic-Air", "", "café-libre", "wlan-gast"}
	for _, ssid := range ssids {
		first := ColorFor(ssid)
		for i := 0; i < 100; i++ {
			if got := ColorFor(ssid); got != first {
				t.Fatalf("ColorFor(%q) changed between calls: %v != %v", ssid, got, first)
			}
		}
	}
}

func TestColorForInPalette(t *testing.T) {
	p := Palette()
	member := func(c [4]uint8) bool {
		for _, pc := range p {
			if pc.R == c[0] && pc.G == c[1] && pc.B == c[2] {
				return true
			}
		}
		return false
	}

	for _, ssid := range []string{"a", "b", "HomeNet", "guest", "printer-5G"} {
		c := ColorFor(ssid)
		if !member([4]uint8{c.R, c.G, c.B, c.A}) {
			t.Errorf("ColorFor(%q) = %v is not a palette colour", ssid, c)
		}
	}
}

func TestPaletteDistinct(t *testing.T) {
	p := Palette()
	seen := make(map[[3]uint8]int)
	for i, c := range p {
		key := [3]uint8{c.R, c.G, c.B}
		if j, dup := seen[key]; dup {
			t.Errorf("palette entries %d and %d are identical: %v", i, j, c)
		}
		seen[key] = i
	}
}

func TestIconFor(t *testing.T) {
	if IconFor(rf.ClassRouter) != IconRouter {
		t.Error("router class should map to the router icon")
	}
	if IconFor(rf.ClassDrone) != IconDrone {
		t.Error("drone class should map to the drone icon")
	}
	if IconFor(rf.ClassUnknown) != IconUnknown {
		t.Error("unknown class should map to the unknown icon")
	}
}

func TestSignalBarColor(t *testing.T) {
	if SignalBarColor(90) != NeonGreen {
		t.Error("strong signal should be green")
	}
	if SignalBarColor(50) != NeonOrange {
		t.Error("middling signal should be orange")
	}
	if SignalBarColor(10) != NeonPink {
		t.Error("weak signal should be pink")
	}
}
