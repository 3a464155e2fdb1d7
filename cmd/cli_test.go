// SPDX-License-Identifier: MIT
package cmd

import (
	"testing"

	"specmon/internal/config"
)

func TestNormalizeBlockSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		expected int
	}{
		{"Power of two unchanged", 2048, 2048},
		{"Rounded up", 1000, 1024},
		{"Small non-power", 3, 4},
		{"One", 1, 1},
		{"Non-positive", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeBlockSize(tt.size); got != tt.expected {
				t.Errorf("normalizeBlockSize(%d) = %d, want %d", tt.size, got, tt.expected)
			}
		})
	}
}

func TestNormalizedBlockSizeValidates(t *testing.T) {
	cfg := config.NewConfig()

	// A rounded flag value passes validation as long as it stays under the
	// block size cap; rounding past the cap is still rejected there.
	cfg.Audio.BlockSize = normalizeBlockSize(1000)
	if err := cfg.Validate(); err != nil {
		t.Errorf("rounded block size should validate, got: %v", err)
	}

	cfg.Audio.BlockSize = normalizeBlockSize(9000) // rounds to 16384, over the cap
	if err := cfg.Validate(); err == nil {
		t.Error("block size above the cap should fail validation")
	}
}
