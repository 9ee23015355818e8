package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protoforge/neonhud/internal/calibration"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveServicesLocatorDisabled(t *testing.T) {
	config := DefaultConfig()
	config.Services.WiFiLocator = false

	svc := resolveServices(context.Background(), config, Options{}, testLogger())
	assert.False(t, svc.EnableWiFiLocator)
	assert.True(t, svc.EnableSystemMetrics)
}

func TestSkipCalibrationWithoutPersistenceDisablesLocator(t *testing.T) {
	// Locator enabled, no persisted calibration, --skip-calibration: the
	// locator is disabled and everything else runs.
	config := DefaultConfig()
	config.Services.WiFiLocator = true
	config.Wireless.CalibrationFile = filepath.Join(t.TempDir(), "calibration.yaml")

	svc := resolveServices(context.Background(), config, Options{SkipCalibration: true}, testLogger())
	assert.False(t, svc.EnableWiFiLocator)
	assert.True(t, svc.EnableSystemMetrics)
	assert.True(t, svc.EnableWiFiScanner)
	assert.True(t, svc.EnableAudio)
}

func TestSkipCalibrationUsesStoredBinding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	stored := &calibration.Calibration{
		LeftInterface:  "wlx-left",
		RightInterface: "wlx-right",
		ScanInterface:  "wlx-left",
		SeparationM:    0.22,
	}
	require.NoError(t, stored.Save(path))

	config := DefaultConfig()
	config.Services.WiFiLocator = true
	config.Wireless.CalibrationFile = path

	svc := resolveServices(context.Background(), config, Options{SkipCalibration: true}, testLogger())
	assert.True(t, svc.EnableWiFiLocator)
	assert.Equal(t, "wlx-left", svc.WiFiLeftInterface)
	assert.Equal(t, "wlx-right", svc.WiFiRightInterface)
	assert.Equal(t, "wlx-left", svc.WiFiScanInterface)
	assert.Equal(t, 0.22, svc.AdapterSeparationM)
}
