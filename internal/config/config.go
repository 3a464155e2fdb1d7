// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"time"

	"specmon/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks construction-time parameter errors. All validation
// failures wrap this sentinel so callers can match with errors.Is.
var ErrConfiguration = errors.New("invalid configuration")

// Duration wraps time.Duration so YAML values can be written as "100ms" or
// "5s"; yaml.v3 has no native duration support.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: bad duration %q", ErrConfiguration, s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Core configuration constants that define the boundaries and defaults
// for the spectrum monitor.
const (
	DefaultDeviceID       = MinDeviceID // System default input device
	DefaultChannels       = 1           // Mono capture
	DefaultSampleRate     = 44100       // CD-quality audio
	DefaultBlockSize      = 2048        // Samples delivered per capture callback
	DefaultBufferDuration = 5 * time.Second
	DefaultTickInterval   = 100 * time.Millisecond

	DefaultMinFreq            = 20.0 // Below normal hearing/voice range is discarded
	DefaultTopK               = 10
	DefaultPeakMinSeparation  = 10 // Bins
	DefaultPeakHeightFraction = 0.2

	// Hardware and processing limits.
	MinDeviceID   = -1     // -1 represents the system default device
	MinSampleRate = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate = 192000 // Maximum supported sample rate (Hz)
	MaxBlockSize  = 8192   // Maximum samples per capture callback (power of 2)
)

// Config holds all runtime configuration for the monitor. It is built from
// defaults, optionally a YAML file, environment overrides, and finally
// command line flags.
type Config struct {
	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error"
	Command  string `yaml:"-"`         // One-off command to execute (e.g. "list")
	TUIMode  bool   `yaml:"-"`         // Render results in the terminal UI

	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	DeviceID       int      `yaml:"device"`          // PortAudio device index (-1 for default)
	Channels       int      `yaml:"channels"`        // Channels to open; only channel 0 enters the pipeline
	SampleRate     float64  `yaml:"sample_rate"`     // Hz
	BlockSize      int      `yaml:"block_size"`      // Samples per capture callback (power of 2)
	BufferDuration Duration `yaml:"buffer_duration"` // Ring buffer span; capacity = rate * duration
	LowLatency     bool     `yaml:"low_latency"`     // Request low latency settings from the device
}

// AnalysisConfig holds spectral analysis and peak detection settings.
type AnalysisConfig struct {
	TickInterval       Duration `yaml:"tick_interval"`        // Analysis cadence
	MinFreq            float64  `yaml:"min_freq"`             // Hz; bins below are masked out
	TopK               int      `yaml:"top_k"`                // Max peaks per result
	PeakMinSeparation  int      `yaml:"peak_min_separation"`  // Bins between accepted peaks
	PeakHeightFraction float64  `yaml:"peak_height_fraction"` // Threshold fraction above the 5th percentile
}

// RecordingConfig holds settings for the optional WAV dump of the capture stream.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
	BitDepth   int    `yaml:"bit_depth"`
}

// TransportConfig holds settings for publishing results over the network.
type TransportConfig struct {
	WSEnabled bool   `yaml:"ws_enabled"` // Broadcast results over WebSocket
	WSAddr    string `yaml:"ws_addr"`    // Listen address, e.g. ":8080"
}

// NewConfig returns a Config populated with defaults. This is the base
// before any file, env, or flag values are applied.
func NewConfig() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			DeviceID:       DefaultDeviceID,
			Channels:       DefaultChannels,
			SampleRate:     DefaultSampleRate,
			BlockSize:      DefaultBlockSize,
			BufferDuration: Duration(DefaultBufferDuration),
		},
		Analysis: AnalysisConfig{
			TickInterval:       Duration(DefaultTickInterval),
			MinFreq:            DefaultMinFreq,
			TopK:               DefaultTopK,
			PeakMinSeparation:  DefaultPeakMinSeparation,
			PeakHeightFraction: DefaultPeakHeightFraction,
		},
		Recording: RecordingConfig{
			Enabled:    false,
			OutputFile: "",
			BitDepth:   16,
		},
		Transport: TransportConfig{
			WSEnabled: false,
			WSAddr:    ":8080",
		},
	}
}

// Validate checks the configuration against hardware and processing limits.
// All errors wrap ErrConfiguration.
func (c *Config) Validate() error {
	a := &c.Audio
	if a.DeviceID < MinDeviceID {
		return fmt.Errorf("%w: device ID %d out of range", ErrConfiguration, a.DeviceID)
	}
	if a.Channels < 1 {
		return fmt.Errorf("%w: channel count must be at least 1, got %d", ErrConfiguration, a.Channels)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %.0f Hz outside [%d, %d]",
			ErrConfiguration, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if !bitint.IsPowerOfTwo(a.BlockSize) || a.BlockSize > MaxBlockSize {
		return fmt.Errorf("%w: block size must be a power of 2 up to %d, got %d",
			ErrConfiguration, MaxBlockSize, a.BlockSize)
	}
	if a.BufferDuration <= 0 {
		return fmt.Errorf("%w: buffer duration must be positive, got %s", ErrConfiguration, a.BufferDuration)
	}

	n := &c.Analysis
	if n.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive, got %s", ErrConfiguration, n.TickInterval)
	}
	if n.MinFreq < 0 || n.MinFreq >= a.SampleRate/2 {
		return fmt.Errorf("%w: min frequency %.1f Hz must be in [0, nyquist)", ErrConfiguration, n.MinFreq)
	}
	if n.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrConfiguration, n.TopK)
	}
	if n.PeakMinSeparation < 1 {
		return fmt.Errorf("%w: peak min separation must be at least 1 bin, got %d", ErrConfiguration, n.PeakMinSeparation)
	}
	if n.PeakHeightFraction < 0 || n.PeakHeightFraction > 1 {
		return fmt.Errorf("%w: peak height fraction %.2f outside [0, 1]", ErrConfiguration, n.PeakHeightFraction)
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: recording bit depth must be 16, 24 or 32, got %d",
				ErrConfiguration, c.Recording.BitDepth)
		}
	}

	return nil
}

// RingCapacity returns the ring buffer capacity in samples.
func (c *Config) RingCapacity() int {
	return int(c.Audio.SampleRate * c.Audio.BufferDuration.Std().Seconds())
}
