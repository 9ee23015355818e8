package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/protoforge/neonhud/internal/rf"
)

func fp(v float64) *float64 { return &v }

func TestSnapshotAtomic(t *testing.T) {
	s := NewStore()

	// Metrics and GPS written by different producers must appear together
	// in one snapshot.
	if err := s.SetMetrics(SystemMetrics{CPUPercent: 45, RAMPercent: 62}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetGPS(GPSSample{Latitude: fp(37.7749), Longitude: fp(-122.4194)}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Metrics.CPUPercent != 45 || snap.Metrics.RAMPercent != 62 {
		t.Errorf("metrics = %+v, want CPU 45 RAM 62", snap.Metrics)
	}
	if snap.Metrics.TempCelsius != nil {
		t.Error("temperature should be unavailable")
	}
	if snap.GPS.Latitude == nil || *snap.GPS.Latitude != 37.7749 {
		t.Errorf("latitude = %v, want 37.7749", snap.GPS.Latitude)
	}
	if snap.GPS.Longitude == nil || *snap.GPS.Longitude != -122.4194 {
		t.Errorf("longitude = %v, want -122.4194", snap.GPS.Longitude)
	}
}

func TestInvalidRangeRejected(t *testing.T) {
	s := NewStore()
	if err := s.SetIMU(IMUSample{Heading: 12, Pitch: 3, Roll: -4}); err != nil {
		t.Fatal(err)
	}

	cases := []error{
		s.SetIMU(IMUSample{Heading: 360}),
		s.SetIMU(IMUSample{Heading: -1}),
		s.SetIMU(IMUSample{Heading: 10, Pitch: 95}),
		s.SetIMU(IMUSample{Heading: 10, Roll: -180}),
		s.SetGPS(GPSSample{Heading: fp(400)}),
		s.SetGPS(GPSSample{Latitude: fp(91)}),
		s.SetGPS(GPSSample{SpeedMS: fp(-1)}),
		s.SetMetrics(SystemMetrics{CPUPercent: 101}),
		s.SetMetrics(SystemMetrics{NetTxKiB: -5}),
		s.SetDirections(map[string]Direction{"x": {SSID: "x", BearingDeg: 360}}),
		s.SetDirections(map[string]Direction{"x": {SSID: "x", Confidence: 1.5}}),
		s.SetNetworkDistance("x", -1),
	}
	for i, err := range cases {
		if !errors.Is(err, ErrInvalidRange) {
			t.Errorf("case %d: err = %v, want ErrInvalidRange", i, err)
		}
	}

	// The offending updates must not have disturbed the store.
	snap := s.Snapshot()
	if snap.IMU == nil || snap.IMU.Heading != 12 {
		t.Errorf("imu = %+v, want the original heading 12", snap.IMU)
	}
	if snap.GPS.Latitude != nil {
		t.Error("rejected GPS write must leave the store unchanged")
	}
}

func TestHeadingPrecedence(t *testing.T) {
	s := NewStore()

	if err := s.SetGPS(GPSSample{Heading: fp(90)}); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if h, src := snap.Heading(); h != 90 || src != HeadingGPS {
		t.Errorf("heading = (%.0f, %d), want (90, GPS)", h, src)
	}

	if err := s.SetIMU(IMUSample{Heading: 180}); err != nil {
		t.Fatal(err)
	}
	snap = s.Snapshot()
	if h, src := snap.Heading(); h != 180 || src != HeadingIMU {
		t.Errorf("heading = (%.0f, %d), want IMU to supersede GPS", h, src)
	}
	if !s.HasIMU() {
		t.Error("HasIMU should report true after an IMU write")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewStore()
	s.SetNetworks([]Device{{SSID: "HomeNet", SignalDBm: -50, Class: rf.ClassRouter}})
	s.SetInterfaceNetworks("wlan1", []Device{{SSID: "HomeNet", SignalDBm: -52}})
	s.SetAudio(AudioFrame{0.1, 0.2})
	if err := s.SetDirections(map[string]Direction{"HomeNet": {SSID: "HomeNet", BearingDeg: 10, Confidence: 0.5}}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	snap.Networks[0].SSID = "mutated"
	snap.ByInterface["wlan1"][0].SSID = "mutated"
	snap.Audio[0] = 99
	snap.Directions["HomeNet"] = Direction{SSID: "mutated"}

	fresh := s.Snapshot()
	if fresh.Networks[0].SSID != "HomeNet" {
		t.Error("mutating a snapshot leaked into the store networks")
	}
	if fresh.ByInterface["wlan1"][0].SSID != "HomeNet" {
		t.Error("mutating a snapshot leaked into the per-interface lists")
	}
	if fresh.Audio[0] != 0.1 {
		t.Error("mutating a snapshot leaked into the audio buffer")
	}
	if fresh.Directions["HomeNet"].BearingDeg != 10 {
		t.Error("mutating a snapshot leaked into the directions")
	}
}

func TestNetworksReplacedWholesale(t *testing.T) {
	s := NewStore()
	s.SetNetworks([]Device{{SSID: "old"}, {SSID: "stale"}})
	s.SetNetworks([]Device{{SSID: "new"}})

	snap := s.Snapshot()
	want := []Device{{SSID: "new"}}
	if diff := cmp.Diff(want, snap.Networks); diff != "" {
		t.Errorf("networks mismatch (-want +got):\n%s", diff)
	}
}

func TestSetNetworkDistance(t *testing.T) {
	s := NewStore()
	s.SetNetworks([]Device{{SSID: "HomeNet", DistanceM: 7542}, {SSID: "other", DistanceM: 3}})
	if err := s.SetNetworkDistance("HomeNet", 8510); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Networks[0].DistanceM != 8510 {
		t.Errorf("fused distance = %.0f, want 8510", snap.Networks[0].DistanceM)
	}
	if snap.Networks[1].DistanceM != 3 {
		t.Errorf("unrelated device distance = %.0f, want untouched", snap.Networks[1].DistanceM)
	}
}

func TestConcurrentWritersAndReader(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				switch w {
				case 0:
					_ = s.SetIMU(IMUSample{Heading: float64(i % 360)})
				case 1:
					_ = s.SetMetrics(SystemMetrics{CPUPercent: float64(i % 100), NetTxKiB: float64(i)})
				case 2:
					s.SetNetworks([]Device{{SSID: "a"}, {SSID: "b"}})
				case 3:
					s.SetAudio(make(AudioFrame, 64))
				}
			}
		}(w)
	}

	var lastTx float64
	for i := 0; i < 500; i++ {
		snap := s.Snapshot()
		if snap.Metrics.NetTxKiB < lastTx {
			t.Fatalf("net counter went backwards: %.0f < %.0f", snap.Metrics.NetTxKiB, lastTx)
		}
		lastTx = snap.Metrics.NetTxKiB
	}
	wg.Wait()
}
