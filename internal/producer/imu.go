package producer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/protoforge/neonhud/internal/rf"
	"github.com/protoforge/neonhud/internal/state"
)

const imuInterval = 20 * time.Millisecond // ~50 Hz

// Quaternion is a raw rotation-vector reading from the inertial sensor.
type Quaternion struct {
	W, X, Y, Z float64
}

// IMUSource abstracts the inertial bus so the producer can be tested
// without hardware.
type IMUSource interface {
	Read() (Quaternion, error)
	Close() error
}

// IMU polls the inertial sensor at 50 Hz and writes heading/pitch/roll.
// Terminal when the bus cannot be opened.
type IMU struct {
	store  *state.Store
	logger *slog.Logger
	open   func() (IMUSource, error)
}

func NewIMU(store *state.Store, logger *slog.Logger) *IMU {
	return &IMU{
		store:  store,
		logger: logger.With(slog.String("producer", "imu")),
		open:   openIIOQuaternion,
	}
}

func (p *IMU) Name() string { return "imu" }

func (p *IMU) Run(ctx context.Context) error {
	src, err := p.open()
	if err != nil {
		return Terminal(fmt.Errorf("opening inertial bus: %w", err))
	}
	defer src.Close()

	p.logger.Info("starting")
	defer p.logger.Info("stopped")

	return loop(ctx, p.logger, imuInterval, func(context.Context) error {
		q, err := src.Read()
		if err != nil {
			return fmt.Errorf("reading quaternion: %w", err)
		}

		heading, pitch, roll := quaternionToEuler(q)
		return p.store.SetIMU(state.IMUSample{Heading: heading, Pitch: pitch, Roll: roll})
	})
}

// quaternionToEuler converts a rotation vector to heading [0, 360), pitch
// [-90, 90] and roll (-180, 180].
func quaternionToEuler(q Quaternion) (heading, pitch, roll float64) {
	sinrCosp := 2 * (q.W*q.X + q.Y*q.Z)
	cosrCosp := 1 - 2*(q.X*q.X+q.Y*q.Y)
	roll = math.Atan2(sinrCosp, cosrCosp) * 180 / math.Pi

	sinp := 2 * (q.W*q.Y - q.Z*q.X)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(90, sinp)
	} else {
		pitch = math.Asin(sinp) * 180 / math.Pi
	}

	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	heading = rf.NormalizeDegrees(math.Atan2(sinyCosp, cosyCosp) * 180 / math.Pi)

	if roll <= -180 {
		roll += 360
	}
	return heading, pitch, roll
}

// iioQuaternionSource reads the rotation vector channel an IIO driver
// exposes under /sys/bus/iio.
type iioQuaternionSource struct {
	rawPath string
	scale   float64
}

// openIIOQuaternion locates the first IIO device exposing a rotation
// quaternion channel.
func openIIOQuaternion() (IMUSource, error) {
	devices, err := filepath.Glob("/sys/bus/iio/devices/iio:device*")
	if err != nil {
		return nil, err
	}

	for _, dev := range devices {
		rawPath := filepath.Join(dev, "in_rot_quaternion_raw")
		if _, err := os.Stat(rawPath); err != nil {
			continue
		}

		scale := 1.0
		if data, err := os.ReadFile(filepath.Join(dev, "in_rot_quaternion_scale")); err == nil {
			if v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err == nil && v != 0 {
				scale = v
			}
		}
		return &iioQuaternionSource{rawPath: rawPath, scale: scale}, nil
	}

	return nil, fmt.Errorf("no IIO rotation vector device found")
}

func (s *iioQuaternionSource) Read() (Quaternion, error) {
	data, err := os.ReadFile(s.rawPath)
	if err != nil {
		return Quaternion{}, err
	}
	return parseQuaternionRaw(string(data), s.scale)
}

func (s *iioQuaternionSource) Close() error { return nil }

// parseQuaternionRaw parses the space-separated w x y z integers of an IIO
// quaternion channel, applying the channel scale.
func parseQuaternionRaw(content string, scale float64) (Quaternion, error) {
	fields := strings.Fields(content)
	if len(fields) != 4 {
		return Quaternion{}, fmt.Errorf("expected 4 quaternion components, got %d", len(fields))
	}

	var vals [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Quaternion{}, fmt.Errorf("parsing component %q: %w", f, err)
		}
		vals[i] = v * scale
	}
	return Quaternion{W: vals[0], X: vals[1], Y: vals[2], Z: vals[3]}, nil
}
