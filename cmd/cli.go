// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"time"

	"specmon/internal/config"
	applog "specmon/internal/log"
	"specmon/pkg/bitint"
	"specmon/pkg/build"

	"github.com/spf13/cobra"
)

// ParseArgs builds the runtime configuration from the config file layer plus
// command line flags. Flags win over file and environment values.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetInfo()

	var configPath string
	var tickMillis int
	var bufferSeconds float64

	// Start from defaults so flag help shows real values; the file layer is
	// reloaded in PersistentPreRunE once --config is known.
	options := config.NewConfig()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Real-time microphone spectrum monitor with peak detection",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, options, loaded)
			if cmd.Flags().Changed("block-size") {
				loaded.Audio.BlockSize = normalizeBlockSize(loaded.Audio.BlockSize)
			}
			if cmd.Flags().Changed("tick-interval") {
				loaded.Analysis.TickInterval = config.Duration(time.Duration(tickMillis) * time.Millisecond)
			}
			if cmd.Flags().Changed("buffer-duration") {
				loaded.Audio.BufferDuration = config.Duration(bufferSeconds * float64(time.Second))
			}
			*options = *loaded
			return options.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.TUIMode = true
			return nil
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
			options.TUIMode = false
		},
	}
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file")

	// Audio device configuration.
	rootCmd.PersistentFlags().IntVarP(&options.Audio.DeviceID, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use 'list' to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&options.Audio.Channels, "channels", "c", config.DefaultChannels,
		"Channels to open (only channel 0 is analyzed)")
	rootCmd.PersistentFlags().Float64VarP(&options.Audio.SampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&options.Audio.BlockSize, "block-size", "b", config.DefaultBlockSize,
		"Samples per capture callback (rounded up to a power of 2)")
	rootCmd.PersistentFlags().Float64Var(&bufferSeconds, "buffer-duration", DefaultBufferSeconds,
		"Ring buffer span in seconds")
	rootCmd.PersistentFlags().BoolVarP(&options.Audio.LowLatency, "low-latency", "l", false,
		"Request low latency settings from the device")

	// Analysis configuration.
	rootCmd.PersistentFlags().IntVar(&tickMillis, "tick-interval", DefaultTickMillis,
		"Analysis tick interval in milliseconds")
	rootCmd.PersistentFlags().IntVarP(&options.Analysis.TopK, "top-k", "k", config.DefaultTopK,
		"Maximum number of peaks per result")
	rootCmd.PersistentFlags().IntVar(&options.Analysis.PeakMinSeparation, "min-separation", config.DefaultPeakMinSeparation,
		"Minimum separation between peaks in FFT bins")

	// Recording configuration.
	rootCmd.PersistentFlags().BoolVarP(&options.Recording.Enabled, "record", "r", false,
		"Record the capture stream to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&options.Recording.OutputFile, "output", "o", "",
		"Output file name. Default is recording-MM-DD-YYYY-HHMMSS.wav")

	// Transport configuration.
	rootCmd.PersistentFlags().BoolVar(&options.Transport.WSEnabled, "ws", false,
		"Broadcast results to WebSocket clients")
	rootCmd.PersistentFlags().StringVar(&options.Transport.WSAddr, "ws-addr", ":8080",
		"WebSocket listen address")

	// Debug configuration.
	rootCmd.PersistentFlags().StringVar(&options.LogLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	if options.Recording.Enabled && options.Recording.OutputFile == "" {
		options.Recording.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") + ".wav"
	}

	return options, nil
}

// Flag defaults that need unit conversion before landing in the Config.
const (
	DefaultTickMillis    = 100
	DefaultBufferSeconds = 5.0
)

// normalizeBlockSize rounds a flag-supplied block size up to the next power
// of 2 with a warning. The capture stream and FFT plans need power-of-2
// blocks; config file values are still rejected outright by validation.
func normalizeBlockSize(size int) int {
	if bitint.IsPowerOfTwo(size) {
		return size
	}
	rounded := bitint.NextPowerOfTwo(size)
	applog.Warnf("Audio: block size %d is not a power of 2, using %d", size, rounded)
	return rounded
}

// applyFlagOverrides copies explicitly-set flag values from the flag-bound
// config onto the file/env-derived one, so precedence is flags > env > file >
// defaults.
func applyFlagOverrides(cmd *cobra.Command, flagCfg, target *config.Config) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("device") {
		target.Audio.DeviceID = flagCfg.Audio.DeviceID
	}
	if set("channels") {
		target.Audio.Channels = flagCfg.Audio.Channels
	}
	if set("sample-rate") {
		target.Audio.SampleRate = flagCfg.Audio.SampleRate
	}
	if set("block-size") {
		target.Audio.BlockSize = flagCfg.Audio.BlockSize
	}
	if set("low-latency") {
		target.Audio.LowLatency = flagCfg.Audio.LowLatency
	}
	if set("top-k") {
		target.Analysis.TopK = flagCfg.Analysis.TopK
	}
	if set("min-separation") {
		target.Analysis.PeakMinSeparation = flagCfg.Analysis.PeakMinSeparation
	}
	if set("record") {
		target.Recording.Enabled = flagCfg.Recording.Enabled
	}
	if set("output") {
		target.Recording.OutputFile = flagCfg.Recording.OutputFile
	}
	if set("ws") {
		target.Transport.WSEnabled = flagCfg.Transport.WSEnabled
	}
	if set("ws-addr") {
		target.Transport.WSAddr = flagCfg.Transport.WSAddr
	}
	if set("log-level") {
		target.LogLevel = flagCfg.LogLevel
	}
}
