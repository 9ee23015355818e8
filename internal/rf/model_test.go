package rf

import (
	"math"
	"testing"
)

func TestDistanceRouter24(t *testing.T) {
	m := DefaultModel()

	// Single 2.4 GHz router at -50 dBm.
	d := m.Distance(-50, Band24)
	if math.Abs(d-7542) > 1 {
		t.Errorf("Distance(-50, 2.4GHz) = %.1f, want ~7542", d)
	}
}

func TestDistanceDrone58(t *testing.T) {
	m := DefaultModel()

	// Single 5.8 GHz drone at -60 dBm.
	d := m.Distance(-60, Band58)
	if math.Abs(d-9943) > 1 {
		t.Errorf("Distance(-60, 5.8GHz) = %.1f, want ~9943", d)
	}
}

func TestDistancePositive(t *testing.T) {
	m := DefaultModel()
	for rssi := -100.0; rssi <= -20.0; rssi++ {
		for _, band := range []Band{Band24, Band58} {
			if d := m.Distance(rssi, band); d <= 0 {
				t.Fatalf("Distance(%.0f, %s) = %f, want > 0", rssi, band, d)
			}
		}
	}
}

func TestDistanceRoundTrip(t *testing.T) {
	m := DefaultModel()
	for _, rssi := range []float64{-33, -50, -61.5, -87} {
		for _, band := range []Band{Band24, Band58} {
			got := m.RSSIFor(m.Distance(rssi, band), band)
			if math.Abs(got-rssi) > 1e-9 {
				t.Errorf("RSSIFor(Distance(%.1f, %s)) = %.12f, want %.1f", rssi, band, got, rssi)
			}
		}
	}
}

func TestFuseDualReceiver(t *testing.T) {
	m := DefaultModel()

	// L = -50 dBm, R = -53 dBm: fused distance is the signal-weighted
	// mean (d_L*53 + d_R*50) / 103 with d_L ~7543 and d_R ~10654,
	// bearing biased left.
	f := m.Fuse(-50, -53, Band24)
	if !f.HasBearing {
		t.Fatal("expected a bearing for a dual-receiver observation")
	}
	want := (m.Distance(-50, Band24)*53 + m.Distance(-53, Band24)*50) / 103
	if math.Abs(f.DistanceM-want) > 1e-9 {
		t.Errorf("fused distance = %.1f, want %.1f", f.DistanceM, want)
	}
	if f.DistanceM < 9000 || f.DistanceM > 9100 {
		t.Errorf("fused distance = %.1f, want ~9053", f.DistanceM)
	}
	if f.BearingOffsetDeg >= 0 {
		t.Errorf("bearing offset = %.1f, want < 0 (left of track)", f.BearingOffsetDeg)
	}
	if math.Abs(f.Confidence-0.15) > 1e-9 {
		t.Errorf("confidence = %f, want 0.15", f.Confidence)
	}
}

func TestFuseEqualSignals(t *testing.T) {
	m := DefaultModel()

	// Within 1 dB the emitter is reported straight ahead with low
	// confidence.
	f := m.Fuse(-50, -50.5, Band24)
	if f.BearingOffsetDeg != 0 {
		t.Errorf("bearing offset = %.2f, want 0", f.BearingOffsetDeg)
	}
	if f.Confidence > 0.05 {
		t.Errorf("confidence = %f, want low", f.Confidence)
	}
}

func TestFuseBearingClamp(t *testing.T) {
	m := DefaultModel()

	f := m.Fuse(-30, -80, Band24)
	if f.BearingOffsetDeg != -m.MaxBearingDeg {
		t.Errorf("bearing offset = %.1f, want clamped to %.1f", f.BearingOffsetDeg, -m.MaxBearingDeg)
	}
	if f.Confidence != 1 {
		t.Errorf("confidence = %f, want 1", f.Confidence)
	}

	f = m.Fuse(-80, -30, Band24)
	if f.BearingOffsetDeg != m.MaxBearingDeg {
		t.Errorf("bearing offset = %.1f, want clamped to %.1f", f.BearingOffsetDeg, m.MaxBearingDeg)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		ssid    string
		band    Band
		channel int
		stable  bool
		want    Class
	}{
		{"DJI-Mavic-Air", Band24, 6, false, ClassDrone},
		{"HomeNet", Band24, 6, true, ClassRouter},
		{"Unnamed", Band58, 44, false, ClassUnknown},
		{"phantom4pro", Band58, 149, false, ClassDrone},
		{"RC-3F2A91", Band58, 161, false, ClassDrone},
		{"HomeNet", Band24, 3, true, ClassUnknown},
		{"HomeNet", Band24, 6, false, ClassUnknown},
		{"", Band58, 44, false, ClassDrone},
	}

	for _, tt := range tests {
		if got := Classify(tt.ssid, tt.band, tt.channel, tt.stable); got != tt.want {
			t.Errorf("Classify(%q, %s, ch%d, stable=%v) = %s, want %s",
				tt.ssid, tt.band, tt.channel, tt.stable, got, tt.want)
		}
	}
}

func TestStableSignal(t *testing.T) {
	if StableSignal([]float64{-50}, 3) {
		t.Error("a single observation must not count as stable")
	}
	if !StableSignal([]float64{-50, -51, -50, -49}, 3) {
		t.Error("a steady signal should be stable")
	}
	if StableSignal([]float64{-50, -70, -45, -90}, 3) {
		t.Error("a swinging signal should not be stable")
	}
}

func TestChannelForFrequency(t *testing.T) {
	tests := []struct {
		mhz  int
		want int
	}{
		{2412, 1},
		{2437, 6},
		{2462, 11},
		{2484, 14},
		{5220, 44},
		{5745, 149},
		{1000, 0},
	}
	for _, tt := range tests {
		if got := ChannelForFrequency(tt.mhz); got != tt.want {
			t.Errorf("ChannelForFrequency(%d) = %d, want %d", tt.mhz, got, tt.want)
		}
	}

	if BandForFrequency(2437) != Band24 {
		t.Error("2437 MHz should map to 2.4GHz")
	}
	if BandForFrequency(5745) != Band58 {
		t.Error("5745 MHz should map to 5.8GHz")
	}
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {360, 0}, {-10, 350}, {725, 5}, {359.5, 359.5},
	}
	for _, tt := range tests {
		if got := NormalizeDegrees(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeDegrees(%.1f) = %.1f, want %.1f", tt.in, got, tt.want)
		}
	}
}

func TestSignalPercent(t *testing.T) {
	if p := SignalPercent(-100); p != 0 {
		t.Errorf("SignalPercent(-100) = %f, want 0", p)
	}
	if p := SignalPercent(-30); p != 100 {
		t.Errorf("SignalPercent(-30) = %f, want 100", p)
	}
	if p := SignalPercent(-65); p <= 0 || p >= 100 {
		t.Errorf("SignalPercent(-65) = %f, want in (0, 100)", p)
	}
}
