// SPDX-License-Identifier: MIT
// Package testsignal generates synthetic waveforms for tests and benchmarks.
package testsignal

import "math"

// Sine returns n samples of a pure sine wave at freq Hz with the given
// amplitude, sampled at sampleRate.
func Sine(n int, freq, amplitude, sampleRate float64) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		tm := float64(i) / sampleRate
		buf[i] = amplitude * math.Sin(2*math.Pi*freq*tm)
	}
	return buf
}

// Harmonics returns n samples of a 440Hz fundamental with two harmonics,
// a rough stand-in for a voiced note.
func Harmonics(n int, sampleRate float64) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		tm := float64(i) / sampleRate
		buf[i] = math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
	}
	return buf
}
