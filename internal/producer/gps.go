package producer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/state"
)

const (
	// DefaultGPSDAddr is the standard gpsd listen address.
	DefaultGPSDAddr = "localhost:2947"

	gpsdWatchCommand  = `?WATCH={"enable":true,"json":true};` + "\n"
	gpsConnectRetries = 5
	gpsRetryDelay     = 2 * time.Second
)

// GPS streams position reports from a gpsd daemon. The daemon emits
// newline-delimited JSON; only TPV (time-position-velocity) reports are
// consumed. Terminal when the daemon stays unreachable across the retry
// budget.
type GPS struct {
	store  *state.Store
	logger *slog.Logger
	addr   string
}

func NewGPS(store *state.Store, addr string, logger *slog.Logger) *GPS {
	if addr == "" {
		addr = DefaultGPSDAddr
	}
	return &GPS{
		store:  store,
		logger: logger.With(slog.String("producer", "gps")),
		addr:   addr,
	}
}

func (p *GPS) Name() string { return "gps" }

func (p *GPS) Run(ctx context.Context) error {
	p.logger.Info("starting", slog.String("gpsd", p.addr))
	defer p.logger.Info("stopped")

	retries := 0
	for {
		connected, err := p.watch(ctx)
		if connected {
			retries = 0
		}
		if err != nil {
			retries++
			if retries >= gpsConnectRetries {
				return Terminal(fmt.Errorf("gpsd unreachable after %d attempts: %w", retries, err))
			}
			p.logger.Warn(fmt.Sprintf("gpsd session ended, retrying: %s", err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(gpsRetryDelay):
		}
	}
}

// watch holds one gpsd session open, writing every fix to the store until
// the stream breaks or the context is cancelled. connected reports whether
// the daemon was reached at all.
func (p *GPS) watch(ctx context.Context) (connected bool, err error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false, fmt.Errorf("dialing gpsd: %w", err)
	}
	defer conn.Close()

	// Cancellation unblocks the scanner by closing the connection.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if _, err := conn.Write([]byte(gpsdWatchCommand)); err != nil {
		return true, fmt.Errorf("enabling watch mode: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		sample, ok, err := parseTPV(scanner.Bytes())
		if err != nil {
			p.logger.Warn(fmt.Sprintf("parsing gpsd report: %s", err))
			continue
		}
		if !ok {
			continue
		}

		// An IMU heading always wins; drop the GPS course rather than
		// overwrite it.
		if p.store.HasIMU() {
			sample.Heading = nil
		}
		if err := p.store.SetGPS(sample); err != nil {
			p.logger.Warn(err.Error())
		}
	}

	if ctx.Err() != nil {
		return true, nil
	}
	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("reading gpsd stream: %w", err)
	}
	return true, fmt.Errorf("gpsd closed the stream")
}

// tpvReport mirrors the gpsd TPV fields the overlay consumes. gpsd omits
// fields it has no estimate for, hence the pointers.
type tpvReport struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Speed *float64 `json:"speed"`
	Track *float64 `json:"track"`
}

// parseTPV decodes one gpsd report line. ok is false for non-TPV classes
// and mode-less reports (no fix yet).
func parseTPV(line []byte) (state.GPSSample, bool, error) {
	var report tpvReport
	if err := json.Unmarshal(line, &report); err != nil {
		return state.GPSSample{}, false, err
	}
	if report.Class != "TPV" || report.Mode < 2 {
		return state.GPSSample{}, false, nil
	}

	sample := state.GPSSample{
		Latitude:  report.Lat,
		Longitude: report.Lon,
		SpeedMS:   report.Speed,
	}
	if report.Track != nil {
		h := rf.NormalizeDegrees(*report.Track)
		sample.Heading = &h
	}
	return sample, true, nil
}
