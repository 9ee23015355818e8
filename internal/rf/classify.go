package rf

import (
	"strings"
	"unicode"

	"gonum.org/v1/gonum/stat"
)

// Class is the device classification attached to a scanned access point.
type Class string

const (
	ClassRouter  Class = "router"
	ClassDrone   Class = "drone"
	ClassUnknown Class = "unknown"
)

// droneTokens are manufacturer markers that identify a drone video or
// control link by SSID alone.
var droneTokens = []string{"dji", "mavic", "phantom", "parrot", "autel"}

// standard24Channels are the non-overlapping 2.4 GHz channels residential
// routers are normally provisioned on.
var standard24Channels = map[int]bool{1: true, 6: true, 11: true}

// Classify applies the classification rules in order, first match wins:
// manufacturer token, then non-residential 5.8 GHz emitter, then a stable
// signal on a standard 2.4 GHz channel.
func Classify(ssid string, band Band, channel int, stable bool) Class {
	lower := strings.ToLower(ssid)
	for _, token := range droneTokens {
		if strings.Contains(lower, token) {
			return ClassDrone
		}
	}

	if band == Band58 && !LooksResidential(ssid) {
		return ClassDrone
	}

	if band == Band24 && standard24Channels[channel] && stable {
		return ClassRouter
	}

	return ClassUnknown
}

// LooksResidential reports whether an SSID has the shape of a named home or
// office network. Serial-style identifiers (all caps/digits with no real
// word, e.g. "RC-3F2A91") and hidden SSIDs do not qualify; those on 5.8 GHz
// are treated as drone links.
func LooksResidential(ssid string) bool {
	if ssid == "" {
		return false
	}

	letters, digits := 0, 0
	hasLower := false
	for _, r := range ssid {
		switch {
		case unicode.IsLetter(r):
			letters++
			if unicode.IsLower(r) {
				hasLower = true
			}
		case unicode.IsDigit(r):
			digits++
		}
	}
	if letters == 0 {
		return false
	}

	// All-caps alphanumerics with a digit-heavy tail read as a serial
	// number, not a network someone named.
	if !hasLower && digits >= 2 {
		return false
	}
	return true
}

// StableSignal reports whether a signal history is steady enough to count
// as a fixed installation. Requires at least two observations within the
// given sample standard deviation.
func StableSignal(historyDBm []float64, maxStdDev float64) bool {
	if len(historyDBm) < 2 {
		return false
	}
	return stat.StdDev(historyDBm, nil) <= maxStdDev
}
