// Package calibration binds the logical left and right receiver identities
// to the interface names the operating system enumerated. USB enumeration
// order is not stable across reboots, so the binding is established once at
// startup by observing enumeration deltas while the operator powers the
// receivers one at a time, then persisted.
package calibration

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoCalibration means the persisted calibration is absent or
	// unreadable. The locator producer is disabled and the rest of the
	// system proceeds.
	ErrNoCalibration = errors.New("no stored calibration")

	// ErrAmbiguous means zero or more than one new interface appeared
	// during a calibration step.
	ErrAmbiguous = errors.New("calibration ambiguous")

	// ErrPromptTimeout means the operator gave no input within the
	// interactive window.
	ErrPromptTimeout = errors.New("calibration prompt timed out")
)

// Calibration is the persisted receiver binding.
type Calibration struct {
	LeftInterface  string  `yaml:"left_interface"`
	RightInterface string  `yaml:"right_interface"`
	ScanInterface  string  `yaml:"scan_interface"`
	SeparationM    float64 `yaml:"separation_m"`
}

// Load reads a calibration file. Absent or corrupt files yield
// ErrNoCalibration.
func Load(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCalibration, err)
	}

	var c Calibration
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrNoCalibration, path, err)
	}
	if c.LeftInterface == "" || c.RightInterface == "" || c.SeparationM <= 0 {
		return nil, fmt.Errorf("%w: %s is incomplete", ErrNoCalibration, path)
	}
	if c.ScanInterface == "" {
		c.ScanInterface = c.LeftInterface
	}
	return &c, nil
}

// Save writes the calibration file.
func (c *Calibration) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding calibration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing calibration: %w", err)
	}
	return nil
}

// Enumerator lists the wireless interface names currently enumerated.
type Enumerator func() ([]string, error)

// SysfsWirelessInterfaces lists wireless interfaces via /sys/class/net.
func SysfsWirelessInterfaces() ([]string, error) {
	entries, err := os.ReadDir("/sys/class/net")
	if err != nil {
		return nil, fmt.Errorf("enumerating interfaces: %w", err)
	}

	var ifaces []string
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join("/sys/class/net", e.Name(), "wireless")); err == nil {
			ifaces = append(ifaces, e.Name())
		}
	}
	return ifaces, nil
}

// onboardPatterns match interfaces reserved for the host's own
// connectivity; these never belong to a hand-mounted receiver.
var onboardPatterns = []string{"wlan0", "wlp*", "wlo*"}

func isOnboard(iface string) bool {
	for _, pattern := range onboardPatterns {
		if ok, _ := filepath.Match(pattern, iface); ok {
			return true
		}
	}
	return false
}

func filterOnboard(ifaces []string) []string {
	var out []string
	for _, iface := range ifaces {
		if !isOnboard(iface) {
			out = append(out, iface)
		}
	}
	return out
}

// added returns the interfaces present in current but not in baseline.
func added(baseline, current []string) []string {
	known := make(map[string]bool, len(baseline))
	for _, iface := range baseline {
		known[iface] = true
	}

	var out []string
	for _, iface := range current {
		if !known[iface] {
			out = append(out, iface)
		}
	}
	return out
}

// Protocol runs the interactive calibration dialogue.
type Protocol struct {
	Enumerate Enumerator
	In        io.Reader
	Out       io.Writer
	Logger    *slog.Logger

	// SettlePoll and SettleMax bound the enumeration polling after the
	// operator powers a receiver; the first unambiguous delta wins.
	SettlePoll time.Duration
	SettleMax  time.Duration

	// InputTimeout bounds each operator prompt. On expiry Run returns
	// ErrPromptTimeout so the caller can fall back to the stored
	// calibration.
	InputTimeout time.Duration

	lines chan string
	errs  chan error
}

// NewProtocol wires a protocol to the real terminal and sysfs.
func NewProtocol(logger *slog.Logger) *Protocol {
	return &Protocol{
		Enumerate:    SysfsWirelessInterfaces,
		In:           os.Stdin,
		Out:          os.Stdout,
		Logger:       logger,
		SettlePoll:   200 * time.Millisecond,
		SettleMax:    5 * time.Second,
		InputTimeout: 30 * time.Second,
	}
}

// Run performs the three-step identification and returns the resulting
// calibration. The caller persists it.
func (p *Protocol) Run(ctx context.Context) (*Calibration, error) {
	p.lines = make(chan string)
	p.errs = make(chan error, 1)
	go p.readLines()

	baseline, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	if len(baseline) > 0 {
		fmt.Fprintf(p.Out, "Note: receivers already present: %s. Unplug them before calibrating.\n",
			strings.Join(baseline, ", "))
	}

	if _, err := p.prompt(ctx, "Power on the RIGHT receiver only, then press Enter: "); err != nil {
		return nil, err
	}
	right, afterRight, err := p.waitForNewInterface(ctx, baseline)
	if err != nil {
		return nil, fmt.Errorf("identifying right receiver: %w", err)
	}
	fmt.Fprintf(p.Out, "Right receiver: %s\n", right)

	if _, err := p.prompt(ctx, "Power on the LEFT receiver, then press Enter: "); err != nil {
		return nil, err
	}
	left, _, err := p.waitForNewInterface(ctx, afterRight)
	if err != nil {
		return nil, fmt.Errorf("identifying left receiver: %w", err)
	}
	fmt.Fprintf(p.Out, "Left receiver: %s\n", left)

	separation, err := p.promptSeparation(ctx)
	if err != nil {
		return nil, err
	}

	c := &Calibration{
		LeftInterface:  left,
		RightInterface: right,
		ScanInterface:  left,
		SeparationM:    separation,
	}
	p.Logger.Info("calibration complete",
		slog.String("left", c.LeftInterface),
		slog.String("right", c.RightInterface),
		slog.Float64("separationM", c.SeparationM))
	return c, nil
}

func (p *Protocol) snapshot() ([]string, error) {
	ifaces, err := p.Enumerate()
	if err != nil {
		return nil, err
	}
	return filterOnboard(ifaces), nil
}

// waitForNewInterface polls enumeration until exactly one new interface has
// appeared, or the settling window closes. Returns the new interface and
// the full post-step set.
func (p *Protocol) waitForNewInterface(ctx context.Context, baseline []string) (string, []string, error) {
	deadline := time.Now().Add(p.SettleMax)
	var current []string

	for {
		var err error
		current, err = p.snapshot()
		if err != nil {
			return "", nil, err
		}

		delta := added(baseline, current)
		if len(delta) == 1 {
			return delta[0], current, nil
		}

		if time.Now().After(deadline) {
			return "", nil, fmt.Errorf("%w: %d new interfaces appeared", ErrAmbiguous, len(delta))
		}

		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(p.SettlePoll):
		}
	}
}

func (p *Protocol) promptSeparation(ctx context.Context) (float64, error) {
	answer, err := p.prompt(ctx, "Adapter separation in centimetres [15]: ")
	if err != nil {
		return 0, err
	}

	cm := 15.0
	if answer != "" {
		cm, err = strconv.ParseFloat(answer, 64)
		if err != nil || cm <= 0 {
			return 0, fmt.Errorf("invalid separation %q", answer)
		}
	}
	if cm < 5 || cm > 50 {
		fmt.Fprintf(p.Out, "Warning: %.0f cm is outside the typical 5-50 cm range; accuracy may suffer.\n", cm)
	}
	return cm / 100, nil
}

func (p *Protocol) prompt(ctx context.Context, text string) (string, error) {
	fmt.Fprint(p.Out, text)

	select {
	case line := <-p.lines:
		return strings.TrimSpace(line), nil
	case err := <-p.errs:
		return "", fmt.Errorf("reading operator input: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(p.InputTimeout):
		return "", ErrPromptTimeout
	}
}

func (p *Protocol) readLines() {
	scanner := bufio.NewScanner(p.In)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		p.errs <- err
		return
	}
	p.errs <- io.EOF
}
