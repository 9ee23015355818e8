package producer

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/protoforge/neonhud/internal/state"
)

const metricsInterval = time.Second

// SystemMetrics samples CPU, RAM, temperature and cumulative network
// counters once per second. A failed temperature read writes the
// unavailable sentinel (nil); a failed CPU, RAM or network read reports 0.
// The loop continues either way; nothing here is terminal.
type SystemMetrics struct {
	store  *state.Store
	logger *slog.Logger

	prevBusy  uint64
	prevTotal uint64
}

func NewSystemMetrics(store *state.Store, logger *slog.Logger) *SystemMetrics {
	return &SystemMetrics{
		store:  store,
		logger: logger.With(slog.String("producer", "system-metrics")),
	}
}

func (p *SystemMetrics) Name() string { return "system-metrics" }

func (p *SystemMetrics) Run(ctx context.Context) error {
	p.logger.Info("starting")
	defer p.logger.Info("stopped")

	return loop(ctx, p.logger, metricsInterval, p.collect)
}

func (p *SystemMetrics) collect(context.Context) error {
	m := state.SystemMetrics{
		CPUPercent:  p.cpuPercent(),
		RAMPercent:  ramPercent(),
		TempCelsius: readCPUTemp(),
	}
	m.NetTxKiB, m.NetRxKiB = netCounters()

	return p.store.SetMetrics(m)
}

// cpuPercent derives utilisation from the busy/total jiffy delta since the
// previous sample. The first sample reports 0.
func (p *SystemMetrics) cpuPercent() float64 {
	busy, total, err := readCPUStat("/proc/stat")
	if err != nil {
		p.logger.Warn(fmt.Sprintf("reading cpu stat: %s", err))
		return 0
	}

	first := p.prevTotal == 0
	dBusy := busy - p.prevBusy
	dTotal := total - p.prevTotal
	p.prevBusy, p.prevTotal = busy, total

	if first || dTotal == 0 {
		return 0
	}
	pct := float64(dBusy) / float64(dTotal) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func readCPUStat(path string) (busy, total uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, 0, fmt.Errorf("empty %s", path)
	}
	return parseCPUStatLine(scanner.Text())
}

// parseCPUStatLine parses the aggregate "cpu" line of /proc/stat. Busy is
// everything except idle and iowait.
func parseCPUStatLine(line string) (busy, total uint64, err error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("unexpected stat line: %q", line)
	}

	var values []uint64
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing stat field %q: %w", f, err)
		}
		values = append(values, v)
	}

	for i, v := range values {
		total += v
		if i != 3 && i != 4 { // idle, iowait
			busy += v
		}
	}
	return busy, total, nil
}

func ramPercent() float64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	return parseMemInfo(string(data))
}

func parseMemInfo(content string) float64 {
	var total, available float64
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
	}
	if total == 0 {
		return 0
	}
	return (total - available) / total * 100
}

// readCPUTemp tries the thermal zone file first, then scans the hwmon
// sensors, and reports unavailable (nil) when both fail.
func readCPUTemp() *float64 {
	if t, ok := readMillideg("/sys/class/thermal/thermal_zone0/temp"); ok {
		return &t
	}

	matches, _ := filepath.Glob("/sys/class/hwmon/hwmon*/temp1_input")
	for _, m := range matches {
		if t, ok := readMillideg(m); ok {
			return &t
		}
	}
	return nil
}

func readMillideg(path string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, false
	}
	return v / 1000, true
}

func netCounters() (txKiB, rxKiB float64) {
	data, err := os.ReadFile("/proc/net/dev")
	if err != nil {
		return 0, 0
	}
	return parseNetDev(string(data))
}

// parseNetDev sums rx/tx byte counters across all interfaces except the
// loopback. The counters are cumulative since boot, so successive samples
// never decrease.
func parseNetDev(content string) (txKiB, rxKiB float64) {
	for _, line := range strings.Split(content, "\n") {
		name, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "lo" {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) < 16 {
			continue
		}
		rx, err1 := strconv.ParseFloat(fields[0], 64)
		tx, err2 := strconv.ParseFloat(fields[8], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		rxKiB += rx / 1024
		txKiB += tx / 1024
	}
	return txKiB, rxKiB
}
