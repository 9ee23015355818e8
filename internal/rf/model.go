package rf

import "math"

// Band identifies the frequency band an access point transmits on.
type Band string

const (
	Band24 Band = "2.4GHz"
	Band58 Band = "5.8GHz"
)

// Security is the coarse encryption state reported by a scan.
type Security string

const (
	SecurityOpen    Security = "open"
	SecuritySecured Security = "secured"
)

// Model carries the tunable constants of the RF estimators. The defaults
// encode the transmit-power assumption the distance display was calibrated
// against; changing them changes every distance shown on the overlay.
type Model struct {
	// TxReferenceDBm is the assumed transmit reference used by the
	// free-space path loss inversion.
	TxReferenceDBm float64

	// BandOffset58DB is the additional attenuation applied to 5.8 GHz
	// signals relative to 2.4 GHz.
	BandOffset58DB float64

	// BearingSlopeDegPerDB converts a left/right signal differential into
	// an angular offset from the current heading.
	BearingSlopeDegPerDB float64

	// MaxBearingDeg clamps the bearing offset.
	MaxBearingDeg float64
}

// DefaultModel returns the model constants the overlay was tuned with.
func DefaultModel() Model {
	return Model{
		TxReferenceDBm:       27.55,
		BandOffset58DB:       7.6,
		BearingSlopeDegPerDB: 3,
		MaxBearingDeg:        60,
	}
}

func (m Model) bandOffset(band Band) float64 {
	if band == Band58 {
		return m.BandOffset58DB
	}
	return 0
}

// Distance inverts the free-space path loss formula and returns the
// estimated distance in metres for a received signal strength.
func (m Model) Distance(rssiDBm float64, band Band) float64 {
	return math.Pow(10, (m.TxReferenceDBm-rssiDBm-m.bandOffset(band))/20)
}

// RSSIFor is the inverse of Distance: the signal strength that would be
// observed at the given distance.
func (m Model) RSSIFor(distanceM float64, band Band) float64 {
	return m.TxReferenceDBm - m.bandOffset(band) - 20*math.Log10(distanceM)
}

// Fused is the result of combining the two receivers' observations of one
// emitter.
type Fused struct {
	DistanceM float64

	// BearingOffsetDeg is relative to the current heading; negative means
	// left of track. Only meaningful when HasBearing is true.
	BearingOffsetDeg float64
	Confidence       float64
	HasBearing       bool
}

// Fuse combines left and right receiver RSSI for the same SSID into a
// single distance and bearing estimate. Distance is the signal-weighted
// mean of the per-receiver path loss distances, weighted by the opposite
// side's |RSSI| so the stronger receiver dominates.
func (m Model) Fuse(leftDBm, rightDBm float64, band Band) Fused {
	dl := m.Distance(leftDBm, band)
	dr := m.Distance(rightDBm, band)

	wl := math.Abs(leftDBm)
	wr := math.Abs(rightDBm)
	if wl+wr == 0 {
		return Fused{DistanceM: (dl + dr) / 2}
	}

	f := Fused{
		DistanceM:  (dl*wr + dr*wl) / (wl + wr),
		HasBearing: true,
	}

	// Left stronger (less negative) pulls the bearing left of track,
	// right stronger pulls it right. Within 1 dB the sides are considered
	// equal and the emitter is reported straight ahead.
	diff := leftDBm - rightDBm
	f.Confidence = math.Min(1, math.Abs(diff)/20)
	if math.Abs(diff) <= 1 {
		return f
	}

	offset := -diff * m.BearingSlopeDegPerDB
	f.BearingOffsetDeg = math.Max(-m.MaxBearingDeg, math.Min(m.MaxBearingDeg, offset))
	return f
}

// AbsoluteBearing resolves a relative bearing offset against the current
// heading, normalised to [0, 360).
func AbsoluteBearing(headingDeg, offsetDeg float64) float64 {
	return NormalizeDegrees(headingDeg + offsetDeg)
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// SignalPercent maps an RSSI in the usable −100..−30 dBm window onto 0..100
// for bar displays.
func SignalPercent(rssiDBm float64) float64 {
	p := (rssiDBm + 100) / 70 * 100
	return math.Max(0, math.Min(100, p))
}
