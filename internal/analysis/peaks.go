// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"slices"
	"sort"

	"specmon/internal/config"

	"gonum.org/v1/gonum/stat"
)

// Peak is one dominant-frequency candidate. Rank is the 0-based position in
// the magnitude-descending order of the returned peaks.
type Peak struct {
	FrequencyHz float64 `json:"frequency_hz"`
	MagnitudeDB float64 `json:"magnitude_db"`
	Rank        int     `json:"rank"`
}

// PeakDetector extracts ranked dominant-frequency peaks from a spectrum.
//
// The height threshold floats with the frame: the 5th percentile of the
// magnitudes plus heightFraction of the percentile-to-max span. Candidates
// are local maxima above that threshold; candidates closer than minSeparation
// bins lose to the stronger one.
type PeakDetector struct {
	topK           int
	minSeparation  int
	heightFraction float64
}

// NewPeakDetector creates a detector returning at most topK peaks with at
// least minSeparation bins between them.
func NewPeakDetector(topK, minSeparation int, heightFraction float64) (*PeakDetector, error) {
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", config.ErrConfiguration, topK)
	}
	if minSeparation < 1 {
		return nil, fmt.Errorf("%w: peak min separation must be at least 1 bin, got %d",
			config.ErrConfiguration, minSeparation)
	}
	if heightFraction < 0 || heightFraction > 1 {
		return nil, fmt.Errorf("%w: peak height fraction %.2f outside [0, 1]",
			config.ErrConfiguration, heightFraction)
	}
	return &PeakDetector{
		topK:           topK,
		minSeparation:  minSeparation,
		heightFraction: heightFraction,
	}, nil
}

// Detect returns at most topK peaks, sorted by magnitude descending. An empty
// frame or a frame with nothing above threshold yields an empty slice; that
// is a normal outcome, not an error.
func (d *PeakDetector) Detect(frame SpectrumFrame) []Peak {
	mags := frame.Magnitudes
	if len(mags) < 3 {
		return nil // a local maximum needs two neighbors
	}

	threshold := d.threshold(mags)

	// Local maxima: strictly above both neighbors and at least threshold.
	var candidates []int
	for i := 1; i < len(mags)-1; i++ {
		if mags[i] > mags[i-1] && mags[i] > mags[i+1] && mags[i] >= threshold {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Strongest first; of two candidates within minSeparation bins the
	// stronger survives. Stable sort keeps lower-index candidates ahead on
	// exact magnitude ties.
	sort.SliceStable(candidates, func(a, b int) bool {
		return mags[candidates[a]] > mags[candidates[b]]
	})

	accepted := make([]int, 0, d.topK)
	for _, c := range candidates {
		ok := true
		for _, kept := range accepted {
			if abs(c-kept) < d.minSeparation {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, c)
			if len(accepted) == d.topK {
				break
			}
		}
	}

	peaks := make([]Peak, len(accepted))
	for rank, idx := range accepted {
		peaks[rank] = Peak{
			FrequencyHz: frame.Frequencies[idx],
			MagnitudeDB: mags[idx],
			Rank:        rank,
		}
	}
	return peaks
}

// threshold computes the adaptive height threshold for one frame.
func (d *PeakDetector) threshold(mags []float64) float64 {
	sorted := slices.Clone(mags)
	slices.Sort(sorted)

	p5 := stat.Quantile(0.05, stat.LinInterp, sorted, nil)
	max := sorted[len(sorted)-1]
	return p5 + d.heightFraction*(max-p5)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
