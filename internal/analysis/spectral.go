// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"specmon/internal/config"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrInsufficientData reports an empty snapshot at analysis time. The caller
// skips the tick rather than producing a degenerate spectrum.
var ErrInsufficientData = errors.New("analysis: empty snapshot")

// epsilon avoids a log singularity at zero magnitude; an all-zero input lands
// on a floor of 20*log10(epsilon) = -200 dB.
const epsilon = 1e-10

// SpectrumFrame is a magnitude spectrum over [minFreq, nyquist]. Frequencies
// are strictly increasing and parallel to Magnitudes (dB). Frames are
// ephemeral: recomputed every tick, never retained.
type SpectrumFrame struct {
	Frequencies []float64 `json:"frequencies"`
	Magnitudes  []float64 `json:"magnitudes"`
}

// Len returns the number of bins in the frame.
func (f SpectrumFrame) Len() int { return len(f.Magnitudes) }

// fftPlan holds the FFT instance, window coefficients and scratch buffers for
// one snapshot length. Snapshots grow while the ring buffer fills, then stay
// at capacity, so in steady state the plan is reused without allocation.
type fftPlan struct {
	n      int
	fft    *fourier.FFT
	window []float64
	input  []float64
	coeffs []complex128
}

// SpectralAnalyzer turns a sample snapshot into a SpectrumFrame:
// Hann window, real FFT, dB magnitudes, low-frequency mask.
type SpectralAnalyzer struct {
	sampleRate float64
	minFreq    float64
	plan       *fftPlan
}

// NewSpectralAnalyzer creates an analyzer for the given sample rate, masking
// bins below minFreq (Hz).
func NewSpectralAnalyzer(sampleRate, minFreq float64) (*SpectralAnalyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %f",
			config.ErrConfiguration, sampleRate)
	}
	if minFreq < 0 || minFreq >= sampleRate/2 {
		return nil, fmt.Errorf("%w: min frequency %.1f Hz must be in [0, nyquist)",
			config.ErrConfiguration, minFreq)
	}
	return &SpectralAnalyzer{sampleRate: sampleRate, minFreq: minFreq}, nil
}

// Analyze computes the magnitude spectrum of snapshot. The snapshot is not
// modified. Returns ErrInsufficientData if the snapshot is empty.
func (a *SpectralAnalyzer) Analyze(snapshot []float64) (SpectrumFrame, error) {
	n := len(snapshot)
	if n == 0 {
		return SpectrumFrame{}, ErrInsufficientData
	}

	p := a.planFor(n)

	// Windowed copy; the window suppresses spectral leakage from the finite
	// snapshot edges.
	for i, s := range snapshot {
		p.input[i] = s * p.window[i]
	}

	p.fft.Coefficients(p.coeffs, p.input)

	// Bin k sits at k * rate / n. Skip bins below the mask frequency.
	binWidth := a.sampleRate / float64(n)
	firstBin := int(math.Ceil(a.minFreq / binWidth))
	if a.minFreq > 0 && float64(firstBin)*binWidth < a.minFreq {
		firstBin++ // guard against float rounding below the mask
	}
	if firstBin >= len(p.coeffs) {
		return SpectrumFrame{}, nil
	}

	bins := len(p.coeffs) - firstBin
	frame := SpectrumFrame{
		Frequencies: make([]float64, bins),
		Magnitudes:  make([]float64, bins),
	}
	for i := 0; i < bins; i++ {
		k := firstBin + i
		frame.Frequencies[i] = float64(k) * binWidth
		frame.Magnitudes[i] = 20 * math.Log10(cmplx.Abs(p.coeffs[k])+epsilon)
	}

	return frame, nil
}

// SampleRate returns the configured sample rate (Hz).
func (a *SpectralAnalyzer) SampleRate() float64 { return a.sampleRate }

// planFor returns the cached plan for length n, rebuilding it only when the
// snapshot length changes.
func (a *SpectralAnalyzer) planFor(n int) *fftPlan {
	if a.plan != nil && a.plan.n == n {
		return a.plan
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0
	}
	if n > 1 {
		window.Hann(w) // single-sample windows are left rectangular
	}

	a.plan = &fftPlan{
		n:      n,
		fft:    fourier.NewFFT(n),
		window: w,
		input:  make([]float64, n),
		coeffs: make([]complex128, n/2+1),
	}
	return a.plan
}
