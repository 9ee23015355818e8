// Package camera provides the live video source the overlay is composited
// onto. Frames arrive at the capture rate on a background goroutine; the
// render loop only ever reads the most recent one and never blocks on the
// device.
package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

const captureRuntime = "ffmpeg"

// Stream decodes a raw RGBA pipe from the capture process and retains the
// latest frame.
type Stream struct {
	width  int
	height int
	logger *slog.Logger

	cmd    *exec.Cmd
	cancel context.CancelFunc

	mu      sync.Mutex
	frame   []byte
	hasNew  bool
	lastErr error

	wg sync.WaitGroup
}

// Open starts the capture pipeline on a video device. Failure to open the
// camera is fatal to the process; callers should exit non-zero.
func Open(ctx context.Context, device string, width, height int, logger *slog.Logger) (*Stream, error) {
	binPath, err := exec.LookPath(captureRuntime)
	if err != nil {
		return nil, fmt.Errorf("capture runtime %q not found: %w", captureRuntime, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binPath,
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-i", device,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("opening camera %s: %w", device, err)
	}

	s := &Stream{
		width:  width,
		height: height,
		logger: logger.With(slog.String("component", "camera")),
		cmd:    cmd,
		cancel: cancel,
		frame:  make([]byte, width*height*4),
	}

	s.wg.Add(1)
	go s.readFrames(stdout)

	s.logger.Info("camera opened", slog.String("device", device), slog.Int("width", width), slog.Int("height", height))
	return s, nil
}

func (s *Stream) readFrames(r io.Reader) {
	defer s.wg.Done()

	buf := make([]byte, s.width*s.height*4)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		copy(s.frame, buf)
		s.hasNew = true
		s.mu.Unlock()
	}
}

// Frame copies the most recent frame into img and reports whether any
// frame has arrived yet. img must match the capture dimensions.
func (s *Stream) Frame(img *image.RGBA) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasNew && s.lastErr != nil {
		return false, fmt.Errorf("camera stream ended: %w", s.lastErr)
	}
	if !s.hasNew {
		return false, nil
	}
	copy(img.Pix, s.frame)
	return true, nil
}

// Bounds returns the capture frame rectangle.
func (s *Stream) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// Close stops the capture process and waits for the reader to drain.
func (s *Stream) Close() {
	s.cancel()
	_ = s.cmd.Wait()
	s.wg.Wait()
	s.logger.Info("camera closed")
}
