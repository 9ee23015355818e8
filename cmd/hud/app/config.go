package app

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the main application configuration.
type Config struct {
	Settings Settings       `yaml:"settings"`
	Services ServicesConfig `yaml:"services"`
	Wireless WirelessConfig `yaml:"wireless"`
	Camera   CameraConfig   `yaml:"camera"`
	GPS      GPSConfig      `yaml:"gps"`
	Overlay  OverlayConfig  `yaml:"overlay"`
}

// Settings represents global application settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// ServicesConfig enables or disables each producer.
type ServicesConfig struct {
	SystemMetrics bool `yaml:"systemMetrics"`
	GPS           bool `yaml:"gps"`
	IMU           bool `yaml:"imu"`
	WiFiScanner   bool `yaml:"wifiScanner"`
	WiFiLocator   bool `yaml:"wifiLocator"`
	Audio         bool `yaml:"audio"`
}

// WirelessConfig binds the receiver interfaces. Calibration overrides the
// left/right/scan bindings at startup when it runs.
type WirelessConfig struct {
	ScanInterface      string  `yaml:"scanInterface"`
	LeftInterface      string  `yaml:"leftInterface"`
	RightInterface     string  `yaml:"rightInterface"`
	AdapterSeparationM float64 `yaml:"adapterSeparationM"`
	CalibrationFile    string  `yaml:"calibrationFile"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device string `yaml:"device"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// GPSConfig points at the position daemon.
type GPSConfig struct {
	Addr string `yaml:"addr"`
}

// OverlayConfig tunes the drawing layer.
type OverlayConfig struct {
	FontPath    string `yaml:"fontPath"`
	Framebuffer string `yaml:"framebuffer"`
}

// DefaultConfig mirrors a bare headset: host metrics, a single scanning
// receiver and the audio visualizer, with the position and orientation
// sensors off until their hardware is declared present.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Services: ServicesConfig{
			SystemMetrics: true,
			WiFiScanner:   true,
			Audio:         true,
		},
		Wireless: WirelessConfig{
			ScanInterface:      "wlan1",
			LeftInterface:      "wlan1",
			RightInterface:     "wlan2",
			AdapterSeparationM: 0.15,
			CalibrationFile:    "calibration.yaml",
		},
		Camera: CameraConfig{
			Device: "/dev/video0",
			Width:  1280,
			Height: 720,
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults. An empty
// path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations that cannot start. Suspicious but
// workable settings are surfaced via Warnings instead.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera size %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Services.WiFiScanner && c.Wireless.ScanInterface == "" {
		return fmt.Errorf("wifi scanner enabled without a scan interface")
	}
	if c.Services.WiFiLocator {
		if c.Wireless.LeftInterface == "" || c.Wireless.RightInterface == "" {
			return fmt.Errorf("wifi locator enabled without both receiver interfaces")
		}
		if c.Wireless.LeftInterface == c.Wireless.RightInterface {
			return fmt.Errorf("wifi locator requires two different interfaces, both are %q", c.Wireless.LeftInterface)
		}
	}
	return nil
}

// Warnings reports configuration smells worth logging at startup.
func (c *Config) Warnings() []string {
	var warnings []string

	onboard := func(iface string) bool {
		return iface == "wlan0" || (len(iface) >= 3 && (iface[:3] == "wlp" || iface[:3] == "wlo"))
	}

	if c.Services.WiFiScanner && onboard(c.Wireless.ScanInterface) {
		warnings = append(warnings, fmt.Sprintf(
			"scanning on onboard interface %q; a dedicated USB receiver is recommended", c.Wireless.ScanInterface))
	}
	if c.Services.WiFiLocator {
		if !c.Services.GPS && !c.Services.IMU {
			warnings = append(warnings, "wifi locator needs a heading source; enable gps or imu")
		}
		if sep := c.Wireless.AdapterSeparationM; sep < 0.05 || sep > 0.5 {
			warnings = append(warnings, fmt.Sprintf(
				"adapter separation %.2fm is outside the typical 0.05-0.5m range", sep))
		}
	}
	return warnings
}

// LogLevel parses the configured level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
