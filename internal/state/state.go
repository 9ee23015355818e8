// Package state is the central thread-safe store every producer writes into
// and the render loop reads from. One exclusive lock guards a plain record;
// critical sections only copy memory, the store performs no I/O.
package state

import (
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/protoforge/neonhud/internal/rf"
)

// ErrInvalidRange is returned when a setter receives an out-of-domain
// value. The offending update is rejected and the store is unchanged.
var ErrInvalidRange = errors.New("value out of range")

// GPSSample is one fix from the GPS receiver. Nullability is per field: a
// fix with no course carries a nil Heading only.
type GPSSample struct {
	Latitude  *float64 // decimal degrees
	Longitude *float64 // decimal degrees
	SpeedMS   *float64 // metres per second
	Heading   *float64 // degrees [0, 360)
}

// IMUSample is one orientation reading. All fields present or the sample
// is absent.
type IMUSample struct {
	Heading float64 // degrees [0, 360)
	Pitch   float64 // degrees [-90, 90]
	Roll    float64 // degrees (-180, 180]
}

// SystemMetrics is one host telemetry sample. TempCelsius is nil when no
// temperature source is available. The net counters are cumulative and
// never decrease while the metrics producer is alive.
type SystemMetrics struct {
	CPUPercent  float64
	RAMPercent  float64
	TempCelsius *float64
	NetTxKiB    float64
	NetRxKiB    float64
}

// Device is one scanned access point, enriched with classification,
// distance and its assigned colour.
type Device struct {
	SSID      string
	SignalDBm float64
	Channel   int
	Security  rf.Security
	Band      rf.Band
	Class     rf.Class
	DistanceM float64
	Colour    color.RGBA
}

// Direction is a triangulated bearing towards one emitter.
type Direction struct {
	SSID       string
	BearingDeg float64 // absolute, [0, 360)
	Confidence float64 // [0, 1]
}

// AudioFrame is a fixed-length window of mono PCM samples normalised to
// [-1, 1].
type AudioFrame []float64

// HeadingSource tells a consumer where a snapshot heading came from.
type HeadingSource int

const (
	HeadingNone HeadingSource = iota
	HeadingIMU
	HeadingGPS
)

// Snapshot is a deep-copied, self-consistent view of the whole store at a
// single moment. Holding a snapshot never blocks writers.
type Snapshot struct {
	GPS         GPSSample
	IMU         *IMUSample
	Metrics     SystemMetrics
	Networks    []Device
	ByInterface map[string][]Device
	Directions  map[string]Direction
	Audio       AudioFrame
}

// Heading resolves the heading to display: an IMU heading supersedes a GPS
// heading whenever both are present.
func (s *Snapshot) Heading() (float64, HeadingSource) {
	if s.IMU != nil {
		return s.IMU.Heading, HeadingIMU
	}
	if s.GPS.Heading != nil {
		return *s.GPS.Heading, HeadingGPS
	}
	return 0, HeadingNone
}

// Store is the shared state record. The zero value is not usable; call
// NewStore.
type Store struct {
	mu          sync.Mutex
	gps         GPSSample
	imu         *IMUSample
	metrics     SystemMetrics
	networks    []Device
	byInterface map[string][]Device
	directions  map[string]Direction
	audio       AudioFrame
}

// NewStore returns a store with cold-start defaults: nulls and empties.
func NewStore() *Store {
	return &Store{
		byInterface: make(map[string][]Device),
		directions:  make(map[string]Direction),
	}
}

func degreesIn(v *float64, lo, hi float64, field string) error {
	if v != nil && (*v < lo || *v >= hi) {
		return fmt.Errorf("%s %.3f not in [%g, %g): %w", field, *v, lo, hi, ErrInvalidRange)
	}
	return nil
}

// SetGPS replaces the GPS sample. Heading must be in [0, 360), latitude in
// [-90, 90], longitude in [-180, 180], speed non-negative.
func (s *Store) SetGPS(sample GPSSample) error {
	if err := degreesIn(sample.Heading, 0, 360, "gps heading"); err != nil {
		return err
	}
	if lat := sample.Latitude; lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("latitude %.6f not in [-90, 90]: %w", *lat, ErrInvalidRange)
	}
	if lon := sample.Longitude; lon != nil && (*lon < -180 || *lon > 180) {
		return fmt.Errorf("longitude %.6f not in [-180, 180]: %w", *lon, ErrInvalidRange)
	}
	if sp := sample.SpeedMS; sp != nil && *sp < 0 {
		return fmt.Errorf("speed %.3f negative: %w", *sp, ErrInvalidRange)
	}

	s.mu.Lock()
	s.gps = sample
	s.mu.Unlock()
	return nil
}

// SetIMU replaces the IMU sample.
func (s *Store) SetIMU(sample IMUSample) error {
	if sample.Heading < 0 || sample.Heading >= 360 {
		return fmt.Errorf("imu heading %.3f not in [0, 360): %w", sample.Heading, ErrInvalidRange)
	}
	if sample.Pitch < -90 || sample.Pitch > 90 {
		return fmt.Errorf("pitch %.3f not in [-90, 90]: %w", sample.Pitch, ErrInvalidRange)
	}
	if sample.Roll <= -180 || sample.Roll > 180 {
		return fmt.Errorf("roll %.3f not in (-180, 180]: %w", sample.Roll, ErrInvalidRange)
	}

	s.mu.Lock()
	s.imu = &sample
	s.mu.Unlock()
	return nil
}

// HasIMU reports whether an IMU sample has been written. The GPS producer
// consults this so a GPS course never overwrites an IMU-sourced heading.
func (s *Store) HasIMU() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imu != nil
}

// SetMetrics replaces the system metrics sample.
func (s *Store) SetMetrics(m SystemMetrics) error {
	if m.CPUPercent < 0 || m.CPUPercent > 100 {
		return fmt.Errorf("cpu %.1f%% not in [0, 100]: %w", m.CPUPercent, ErrInvalidRange)
	}
	if m.RAMPercent < 0 || m.RAMPercent > 100 {
		return fmt.Errorf("ram %.1f%% not in [0, 100]: %w", m.RAMPercent, ErrInvalidRange)
	}
	if m.NetTxKiB < 0 || m.NetRxKiB < 0 {
		return fmt.Errorf("net counters (%.1f, %.1f) negative: %w", m.NetTxKiB, m.NetRxKiB, ErrInvalidRange)
	}

	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
	return nil
}

// SetNetworks replaces the primary device list wholesale; entries absent
// from the new scan are dropped.
func (s *Store) SetNetworks(devices []Device) {
	copied := append([]Device(nil), devices...)

	s.mu.Lock()
	s.networks = copied
	s.mu.Unlock()
}

// SetInterfaceNetworks replaces the device list observed on one receiver
// interface.
func (s *Store) SetInterfaceNetworks(iface string, devices []Device) {
	copied := append([]Device(nil), devices...)

	s.mu.Lock()
	s.byInterface[iface] = copied
	s.mu.Unlock()
}

// SetNetworkDistance folds a fused distance estimate back into the primary
// entry for an SSID. A no-op when the SSID is not currently listed.
func (s *Store) SetNetworkDistance(ssid string, distanceM float64) error {
	if distanceM < 0 {
		return fmt.Errorf("distance %.1f negative: %w", distanceM, ErrInvalidRange)
	}

	s.mu.Lock()
	for i := range s.networks {
		if s.networks[i].SSID == ssid {
			s.networks[i].DistanceM = distanceM
		}
	}
	s.mu.Unlock()
	return nil
}

// SetDirections replaces all direction estimates wholesale.
func (s *Store) SetDirections(dirs map[string]Direction) error {
	for ssid, d := range dirs {
		if d.BearingDeg < 0 || d.BearingDeg >= 360 {
			return fmt.Errorf("bearing %.1f for %q not in [0, 360): %w", d.BearingDeg, ssid, ErrInvalidRange)
		}
		if d.Confidence < 0 || d.Confidence > 1 {
			return fmt.Errorf("confidence %.2f for %q not in [0, 1]: %w", d.Confidence, ssid, ErrInvalidRange)
		}
	}

	copied := make(map[string]Direction, len(dirs))
	for k, v := range dirs {
		copied[k] = v
	}

	s.mu.Lock()
	s.directions = copied
	s.mu.Unlock()
	return nil
}

// SetAudio replaces the latest PCM window.
func (s *Store) SetAudio(frame AudioFrame) {
	copied := append(AudioFrame(nil), frame...)

	s.mu.Lock()
	s.audio = copied
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the whole store under a single lock
// acquisition, so the view is consistent across all data families.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		GPS:         s.gps,
		Metrics:     s.metrics,
		Networks:    append([]Device(nil), s.networks...),
		ByInterface: make(map[string][]Device, len(s.byInterface)),
		Directions:  make(map[string]Direction, len(s.directions)),
		Audio:       append(AudioFrame(nil), s.audio...),
	}
	if s.imu != nil {
		imu := *s.imu
		snap.IMU = &imu
	}
	for iface, devices := range s.byInterface {
		snap.ByInterface[iface] = append([]Device(nil), devices...)
	}
	for ssid, d := range s.directions {
		snap.Directions[ssid] = d
	}
	return snap
}
