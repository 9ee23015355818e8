package producer

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/state"
	"github.com/protoforge/neonhud/internal/theme"
)

const (
	scanInterval = 15 * time.Second
	scanRuntime  = "iw"
	scanTimeout  = 10 * time.Second

	// signalHistoryLen bounds the per-SSID history used by the stability
	// classification rule.
	signalHistoryLen = 5
	stableStdDevDB   = 3
)

// WiFiScan invokes the wireless scan utility on each bound interface every
// cycle, parses the BSS blocks and writes the enriched device lists. The
// first interface is the primary scan interface. Terminal when the scan
// utility is not installed.
type WiFiScan struct {
	store      *state.Store
	logger     *slog.Logger
	interfaces []string
	model      rf.Model

	// history holds recent signal readings per SSID, from every scanned
	// interface, feeding the router-stability rule.
	history map[string][]float64
}

func NewWiFiScan(store *state.Store, interfaces []string, model rf.Model, logger *slog.Logger) *WiFiScan {
	return &WiFiScan{
		store:      store,
		logger:     logger.With(slog.String("producer", "wifi-scan")),
		interfaces: interfaces,
		model:      model,
		history:    make(map[string][]float64),
	}
}

func (p *WiFiScan) Name() string { return "wifi-scan" }

func (p *WiFiScan) Run(ctx context.Context) error {
	binPath, err := findRuntime(scanRuntime)
	if err != nil {
		return Terminal(fmt.Errorf("scan utility %q not found: %w", scanRuntime, err))
	}

	p.logger.Info("starting", slog.String("interfaces", strings.Join(p.interfaces, ",")))
	defer p.logger.Info("stopped")

	return loop(ctx, p.logger, scanInterval, func(ctx context.Context) error {
		return p.scanAll(ctx, binPath)
	})
}

// scanAll scans the bound interfaces sequentially. Scans never overlap on
// one interface because this goroutine is its only invoker.
func (p *WiFiScan) scanAll(ctx context.Context, binPath string) error {
	var firstErr error
	for i, iface := range p.interfaces {
		devices, err := p.scanInterface(ctx, binPath, iface)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			p.logger.Warn(fmt.Sprintf("scan on %s: %s", iface, err))
			continue
		}

		p.store.SetInterfaceNetworks(iface, devices)
		if i == 0 {
			p.store.SetNetworks(devices)
		}
	}
	return firstErr
}

func (p *WiFiScan) scanInterface(ctx context.Context, binPath, iface string) ([]state.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binPath, "dev", iface, "scan")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("running scan: %w", err)
	}

	devices := parseScanOutput(string(output))
	for i := range devices {
		p.enrich(&devices[i])
	}

	// Strongest first so the overlay list leads with what is closest.
	sort.SliceStable(devices, func(a, b int) bool {
		return devices[a].SignalDBm > devices[b].SignalDBm
	})
	return devices, nil
}

// enrich attaches classification, distance and the stable device colour.
func (p *WiFiScan) enrich(d *state.Device) {
	hist := append(p.history[d.SSID], d.SignalDBm)
	if len(hist) > signalHistoryLen {
		hist = hist[len(hist)-signalHistoryLen:]
	}
	p.history[d.SSID] = hist

	d.Class = rf.Classify(d.SSID, d.Band, d.Channel, rf.StableSignal(hist, stableStdDevDB))
	d.DistanceM = p.model.Distance(d.SignalDBm, d.Band)
	d.Colour = theme.ColorFor(d.SSID)
}

// parseScanOutput splits `iw dev <if> scan` output into BSS blocks and
// extracts the fields the overlay needs. Unparseable blocks are skipped.
func parseScanOutput(output string) []state.Device {
	var devices []state.Device
	var current *state.Device
	secured := false

	flush := func() {
		if current == nil {
			return
		}
		if secured {
			current.Security = rf.SecuritySecured
		}
		devices = append(devices, *current)
		current = nil
		secured = false
	}

	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "BSS ") {
			flush()
			current = &state.Device{Security: rf.SecurityOpen}
			continue
		}
		if current == nil {
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "SSID:"):
			current.SSID = strings.TrimSpace(strings.TrimPrefix(trimmed, "SSID:"))

		case strings.HasPrefix(trimmed, "signal:"):
			value := strings.TrimSpace(strings.TrimPrefix(trimmed, "signal:"))
			value = strings.TrimSuffix(value, " dBm")
			if dbm, err := strconv.ParseFloat(value, 64); err == nil {
				current.SignalDBm = dbm
			}

		case strings.HasPrefix(trimmed, "freq:"):
			value := strings.TrimSpace(strings.TrimPrefix(trimmed, "freq:"))
			// Newer iw prints fractional MHz.
			if mhz, err := strconv.ParseFloat(value, 64); err == nil {
				current.Channel = rf.ChannelForFrequency(int(mhz))
				current.Band = rf.BandForFrequency(int(mhz))
			}

		case strings.HasPrefix(trimmed, "capability:"):
			if strings.Contains(trimmed, "Privacy") {
				secured = true
			}

		case strings.HasPrefix(trimmed, "RSN:") || strings.HasPrefix(trimmed, "WPA:"):
			secured = true
		}
	}
	flush()

	return devices
}
