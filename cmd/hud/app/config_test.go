package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, config.Services.SystemMetrics)
	assert.True(t, config.Services.WiFiScanner)
	assert.True(t, config.Services.Audio)
	assert.False(t, config.Services.GPS)
	assert.False(t, config.Services.IMU)
	assert.False(t, config.Services.WiFiLocator)
	assert.Equal(t, slog.LevelInfo, config.LogLevel())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hud.yaml")
	content := `
settings:
  logLevel: debug
services:
  wifiLocator: true
  imu: true
wireless:
  leftInterface: wlan1
  rightInterface: wlan2
  adapterSeparationM: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, config.LogLevel())
	assert.True(t, config.Services.WiFiLocator)
	assert.Equal(t, "wlan1", config.Wireless.LeftInterface)
	assert.Equal(t, 0.2, config.Wireless.AdapterSeparationM)
	// Unset sections keep their defaults.
	assert.True(t, config.Services.SystemMetrics)
	assert.Equal(t, "/dev/video0", config.Camera.Device)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	badYAML := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badYAML, []byte("{{{"), 0o644))
	_, err := LoadConfig(badYAML)
	assert.Error(t, err)

	sameIface := filepath.Join(dir, "same.yaml")
	require.NoError(t, os.WriteFile(sameIface, []byte(`
services:
  wifiLocator: true
wireless:
  leftInterface: wlan1
  rightInterface: wlan1
`), 0o644))
	_, err = LoadConfig(sameIface)
	assert.Error(t, err, "identical locator interfaces cannot start")

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigWarnings(t *testing.T) {
	config := DefaultConfig()
	config.Wireless.ScanInterface = "wlan0"
	assert.NotEmpty(t, config.Warnings(), "onboard scan interface should warn")

	config = DefaultConfig()
	config.Services.WiFiLocator = true
	config.Wireless.AdapterSeparationM = 0.9
	warnings := config.Warnings()
	assert.GreaterOrEqual(t, len(warnings), 2, "missing heading source and odd separation should both warn")
}
