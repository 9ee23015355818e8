package render

import (
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/protoforge/neonhud/internal/state"
)

// SpectrumBars is the number of radial bars the audio visualizer draws.
const SpectrumBars = 60

// visualizerInterval throttles the FFT so the spectrum is recomputed at
// 5 Hz rather than per frame.
const visualizerInterval = 200 * time.Millisecond

// Visualizer turns the latest PCM window into normalised bar magnitudes.
// Owned by the render goroutine.
type Visualizer struct {
	fft     *fourier.FFT
	fftSize int
	coeffs  []complex128

	bars []float64
	last time.Time
}

func NewVisualizer() *Visualizer {
	return &Visualizer{}
}

// Bars returns SpectrumBars magnitudes in [0, 1], recomputing at most once
// per interval. Returns nil when no audio has arrived.
func (v *Visualizer) Bars(frame state.AudioFrame, now time.Time) []float64 {
	if len(frame) == 0 {
		return nil
	}
	if v.bars != nil && now.Sub(v.last) < visualizerInterval {
		return v.bars
	}
	v.last = now

	if v.fft == nil || v.fftSize != len(frame) {
		v.fft = fourier.NewFFT(len(frame))
		v.fftSize = len(frame)
		v.coeffs = make([]complex128, len(frame)/2+1)
	}

	coeffs := v.fft.Coefficients(v.coeffs, frame)

	n := SpectrumBars
	if len(coeffs) < n {
		n = len(coeffs)
	}

	bars := make([]float64, n)
	var peak float64
	for i := 0; i < n; i++ {
		mag := cmplx.Abs(coeffs[i])
		bars[i] = mag
		if mag > peak {
			peak = mag
		}
	}
	if peak > 0 {
		for i := range bars {
			bars[i] /= peak
		}
	}

	v.bars = bars
	return bars
}
