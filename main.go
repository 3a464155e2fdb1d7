// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"specmon/cmd"
	"specmon/internal/analysis"
	"specmon/internal/audio"
	applog "specmon/internal/log"
	"specmon/internal/pipeline"
	"specmon/internal/transport"
	"specmon/internal/tui"
	"specmon/pkg/build"
)

// main is the entry point for the spectrum monitor.
// The program flow is divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Initialize PortAudio
//   - Parse command line arguments and config
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Construct the ring buffer, capture source, analyzer and detector
//   - Start the orchestrator tick loop on user command
//   - Render results via the terminal UI and/or WebSocket transport
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the pipeline and release the device
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	// One thread for the audio driver callback, one for the UI and tick loop.
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}

	if cfg.Command != "" {
		if err := executeCommand(cfg.Command); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ring, err := audio.NewRingBuffer(cfg.RingCapacity())
	if err != nil {
		applog.Fatalf("%v", err)
	}

	source := audio.NewCaptureSource(cfg, ring)

	analyzer, err := analysis.NewSpectralAnalyzer(cfg.Audio.SampleRate, cfg.Analysis.MinFreq)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	detector, err := analysis.NewPeakDetector(cfg.Analysis.TopK,
		cfg.Analysis.PeakMinSeparation, cfg.Analysis.PeakHeightFraction)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	var renderers pipeline.MultiRenderer

	var ws *transport.WebSocketRenderer
	if cfg.Transport.WSEnabled {
		ws = transport.NewWebSocketRenderer(cfg.Transport.WSAddr)
		defer ws.Close()
		renderers = append(renderers, ws)
	}

	// The orchestrator is wired below once the renderer set is final; the TUI
	// needs the orchestrator as its controller, so build it in two steps.
	orchestrator := pipeline.NewOrchestrator(ring, source, analyzer, detector, nil, cfg.Analysis.TickInterval.Std())

	var ui *tui.UI
	if cfg.TUIMode {
		ui = tui.New(orchestrator)
		renderers = append(renderers, ui)
	}
	if len(renderers) == 0 {
		renderers = append(renderers, pipeline.LogRenderer{})
	}
	orchestrator.SetRenderer(renderers)

	if err := orchestrator.Start(); err != nil {
		applog.Fatalf("%v", err)
	}

	if cfg.Recording.Enabled {
		if err := source.StartRecording(cfg.Recording.OutputFile); err != nil {
			applog.Fatalf("%v", err)
		}
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	if ui != nil {
		go func() {
			<-done
			ui.Quit()
		}()
		if err := ui.Run(); err != nil {
			applog.Errorf("UI error: %v", err)
		}
	} else {
		<-done
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if cfg.Recording.Enabled {
		if err := source.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", cfg.Recording.OutputFile)
		}
	}

	if err := orchestrator.Stop(); err != nil {
		applog.Errorf("Error stopping pipeline: %v", err)
	}
}

// executeCommand handles one-off commands that don't require the pipeline.
func executeCommand(command string) error {
	switch command {
	case "list":
		return audio.ListDevices()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}
