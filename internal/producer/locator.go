package producer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/state"
)

const locatorInterval = 5 * time.Second

// Locator fuses the scan results of the left and right receivers into
// per-emitter direction and distance estimates. It only reads and writes
// the store; the receivers themselves are scanned by the WiFiScan
// producer. Terminal when either receiver interface is absent.
type Locator struct {
	store  *state.Store
	logger *slog.Logger

	leftInterface  string
	rightInterface string
	separationM    float64
	model          rf.Model

	interfaceExists func(string) bool
}

func NewLocator(store *state.Store, left, right string, separationM float64, model rf.Model, logger *slog.Logger) *Locator {
	return &Locator{
		store:           store,
		logger:          logger.With(slog.String("producer", "wifi-locator")),
		leftInterface:   left,
		rightInterface:  right,
		separationM:     separationM,
		model:           model,
		interfaceExists: sysfsInterfaceExists,
	}
}

func (p *Locator) Name() string { return "wifi-locator" }

func (p *Locator) Run(ctx context.Context) error {
	for _, iface := range []string{p.leftInterface, p.rightInterface} {
		if !p.interfaceExists(iface) {
			return Terminal(fmt.Errorf("receiver interface %q absent", iface))
		}
	}

	p.logger.Info("starting",
		slog.String("left", p.leftInterface),
		slog.String("right", p.rightInterface),
		slog.Float64("separationM", p.separationM))
	defer p.logger.Info("stopped")

	return loop(ctx, p.logger, locatorInterval, p.fuse)
}

// fuse joins the two receivers' device lists by SSID and publishes
// triangulated directions wholesale. Emitters seen by only one receiver
// keep their per-receiver distance and get no bearing.
func (p *Locator) fuse(context.Context) error {
	snap := p.store.Snapshot()

	heading, source := snap.Heading()
	if source == state.HeadingNone {
		p.logger.Debug("no heading available for direction estimation")
		return nil
	}

	left := bySSID(snap.ByInterface[p.leftInterface])
	right := bySSID(snap.ByInterface[p.rightInterface])

	dirs := make(map[string]state.Direction)
	for ssid, l := range left {
		r, onBoth := right[ssid]
		if !onBoth {
			continue
		}

		fused := p.model.Fuse(l.SignalDBm, r.SignalDBm, l.Band)
		if !fused.HasBearing {
			continue
		}

		dirs[ssid] = state.Direction{
			SSID:       ssid,
			BearingDeg: rf.AbsoluteBearing(heading, fused.BearingOffsetDeg),
			Confidence: fused.Confidence,
		}
		if err := p.store.SetNetworkDistance(ssid, fused.DistanceM); err != nil {
			p.logger.Warn(err.Error())
		}
	}

	return p.store.SetDirections(dirs)
}

func bySSID(devices []state.Device) map[string]state.Device {
	m := make(map[string]state.Device, len(devices))
	for _, d := range devices {
		if d.SSID == "" {
			continue
		}
		m[d.SSID] = d
	}
	return m
}

func sysfsInterfaceExists(iface string) bool {
	_, err := os.Stat(filepath.Join("/sys/class/net", iface))
	return err == nil
}
