package producer

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/protoforge/neonhud/internal/state"
)

const (
	audioRuntime    = "arecord"
	audioSampleRate = 48000

	// AudioWindowSize is the fixed PCM window length written per poll.
	AudioWindowSize = 1024
)

// Audio captures a continuous mono PCM stream from the default input
// device and publishes the most recent fixed-size window. Terminal when
// the capture binary or device is unavailable.
type Audio struct {
	store  *state.Store
	logger *slog.Logger
}

func NewAudio(store *state.Store, logger *slog.Logger) *Audio {
	return &Audio{
		store:  store,
		logger: logger.With(slog.String("producer", "audio")),
	}
}

func (p *Audio) Name() string { return "audio" }

func (p *Audio) Run(ctx context.Context) error {
	binPath, err := findRuntime(audioRuntime)
	if err != nil {
		return Terminal(fmt.Errorf("capture utility %q not found: %w", audioRuntime, err))
	}

	cmd := exec.CommandContext(ctx, binPath,
		"-q",
		"-f", "S16_LE",
		"-r", fmt.Sprint(audioSampleRate),
		"-c", "1",
		"-t", "raw")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Terminal(fmt.Errorf("creating capture pipe: %w", err))
	}
	if err := cmd.Start(); err != nil {
		return Terminal(fmt.Errorf("opening capture device: %w", err))
	}

	p.logger.Info("starting", slog.Int("sampleRate", audioSampleRate), slog.Int("window", AudioWindowSize))
	defer p.logger.Info("stopped")

	err = p.stream(ctx, stdout)

	// CommandContext kills the capture process on cancellation; Wait just
	// reaps it.
	_ = cmd.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

// stream reads fixed windows off the raw PCM pipe until it breaks.
func (p *Audio) stream(ctx context.Context, r io.Reader) error {
	raw := make([]byte, AudioWindowSize*2) // 16-bit samples
	frame := make(state.AudioFrame, AudioWindowSize)

	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			return Terminal(fmt.Errorf("capture stream ended: %w", err))
		}

		for i := range frame {
			s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			frame[i] = float64(s) / 32768
		}
		p.store.SetAudio(frame)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
