package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/protoforge/neonhud/internal/calibration"
	"github.com/protoforge/neonhud/internal/camera"
	"github.com/protoforge/neonhud/internal/render"
	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/service"
	"github.com/protoforge/neonhud/internal/state"
)

const frameInterval = 33 * time.Millisecond // ~30 Hz

// Options are the command line switches.
type Options struct {
	// SkipCalibration bypasses the interactive receiver identification
	// and uses the persisted calibration unchanged.
	SkipCalibration bool
}

// Run wires the whole system together and drives the render loop until the
// context is cancelled. Camera failures and an unusable overlay font end
// the run with an error; every producer failure degrades the overlay
// instead.
func Run(ctx context.Context, config *Config, opts Options, logger *slog.Logger) error {
	for _, warning := range config.Warnings() {
		logger.Warn(warning)
	}

	cam, err := camera.Open(ctx, config.Camera.Device, config.Camera.Width, config.Camera.Height, logger)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer cam.Close()

	store := state.NewStore()

	svcConfig := resolveServices(ctx, config, opts, logger)
	manager := service.FromConfig(store, svcConfig, rf.DefaultModel(), logger)
	manager.StartAll(ctx)
	defer manager.StopAll()

	compositor, err := render.NewCompositor(config.Overlay.FontPath)
	if err != nil {
		return fmt.Errorf("failed to create compositor: %w", err)
	}

	sink := openFramebuffer(config.Overlay.Framebuffer, logger)
	defer sink.Close()

	return renderLoop(ctx, cam, store, compositor, sink, logger)
}

// resolveServices turns the config record into the service manager's
// config, running the calibration protocol when the locator is enabled.
// A locator without a usable calibration is disabled; everything else
// proceeds.
func resolveServices(ctx context.Context, config *Config, opts Options, logger *slog.Logger) service.Config {
	svc := service.Config{
		EnableSystemMetrics: config.Services.SystemMetrics,
		EnableGPS:           config.Services.GPS,
		EnableIMU:           config.Services.IMU,
		EnableWiFiScanner:   config.Services.WiFiScanner,
		EnableWiFiLocator:   config.Services.WiFiLocator,
		EnableAudio:         config.Services.Audio,
		WiFiScanInterface:   config.Wireless.ScanInterface,
		WiFiLeftInterface:   config.Wireless.LeftInterface,
		WiFiRightInterface:  config.Wireless.RightInterface,
		AdapterSeparationM:  config.Wireless.AdapterSeparationM,
		GPSDAddr:            config.GPS.Addr,
	}

	if !svc.EnableWiFiLocator {
		return svc
	}

	cal, err := resolveCalibration(ctx, config, opts, logger)
	if err != nil {
		logger.Warn(fmt.Sprintf("wifi locator disabled: %s", err))
		svc.EnableWiFiLocator = false
		return svc
	}

	svc.WiFiLeftInterface = cal.LeftInterface
	svc.WiFiRightInterface = cal.RightInterface
	svc.WiFiScanInterface = cal.ScanInterface
	svc.AdapterSeparationM = cal.SeparationM
	return svc
}

func resolveCalibration(ctx context.Context, config *Config, opts Options, logger *slog.Logger) (*calibration.Calibration, error) {
	path := config.Wireless.CalibrationFile

	if opts.SkipCalibration {
		return calibration.Load(path)
	}

	protocol := calibration.NewProtocol(logger)
	cal, err := protocol.Run(ctx)
	switch {
	case err == nil:
		if err := cal.Save(path); err != nil {
			logger.Warn(fmt.Sprintf("persisting calibration: %s", err))
		}
		return cal, nil

	case errors.Is(err, calibration.ErrPromptTimeout):
		// Unattended start: fall back to whatever was persisted.
		logger.Info("no operator input, using stored calibration")
		return calibration.Load(path)

	default:
		return nil, err
	}
}

// renderLoop reads the newest camera frame, snapshots the store and hands
// both to the compositor at the display rate. Producers are never on this
// path; a stalled producer just means stale data in the snapshot.
func renderLoop(ctx context.Context, cam *camera.Stream, store *state.Store, compositor *render.Compositor, sink *frameSink, logger *slog.Logger) error {
	img := image.NewRGBA(cam.Bounds())

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	logger.Info("entering render loop")
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}

		ok, err := cam.Frame(img)
		if err != nil {
			return fmt.Errorf("camera failed: %w", err)
		}
		if !ok {
			continue // no frame yet
		}

		snap := store.Snapshot()
		compositor.Compose(img, &snap, time.Now())
		sink.Present(img)
	}
}

// frameSink pushes composited frames at the display. A nil file means no
// framebuffer was available and the engine runs headless.
type frameSink struct {
	file *os.File
	buf  []byte
}

func openFramebuffer(path string, logger *slog.Logger) *frameSink {
	if path == "" {
		path = "/dev/fb0"
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		logger.Warn(fmt.Sprintf("no framebuffer at %s, running headless: %s", path, err))
		return &frameSink{}
	}
	logger.Info("framebuffer opened", slog.String("path", path))
	return &frameSink{file: f}
}

// Present writes the frame to the framebuffer, swapping to the BGRA byte
// order fbdev expects.
func (s *frameSink) Present(img *image.RGBA) {
	if s.file == nil {
		return
	}

	if len(s.buf) != len(img.Pix) {
		s.buf = make([]byte, len(img.Pix))
	}
	for i := 0; i < len(img.Pix); i += 4 {
		s.buf[i] = img.Pix[i+2]
		s.buf[i+1] = img.Pix[i+1]
		s.buf[i+2] = img.Pix[i]
		s.buf[i+3] = img.Pix[i+3]
	}
	_, _ = s.file.WriteAt(s.buf, 0)
}

func (s *frameSink) Close() {
	if s.file != nil {
		_ = s.file.Close()
	}
}
