// SPDX-License-Identifier: MIT
/*
Package pipeline drives the capture-analysis-detection loop: a fixed-interval
tick takes a ring buffer snapshot, runs the spectral analyzer and the peak
detector, and publishes one PipelineResult to the renderer.

Concurrency model:
- The capture callback produces into the ring buffer on the driver's thread
- A single tick goroutine consumes snapshots; analysis runs inside it, so a
  slow run causes later ticks to be dropped, never queued
- Start/Stop/Clear are caller-triggered and serialize on a mutex
*/
package pipeline

import (
	"errors"
	"sync"
	"time"

	"specmon/internal/analysis"
	"specmon/internal/audio"
	applog "specmon/internal/log"
)

// Source is the capture dependency of the orchestrator. Start opens the
// device and begins delivery into the ring buffer; Stop halts delivery and
// releases the device and must be idempotent.
type Source interface {
	Start() error
	Stop() error
}

// Orchestrator is the Idle/Running state machine over the pipeline.
type Orchestrator struct {
	ring     *audio.RingBuffer
	source   Source
	analyzer *analysis.SpectralAnalyzer
	detector *analysis.PeakDetector
	renderer Renderer
	interval time.Duration

	mu      sync.Mutex
	running bool
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewOrchestrator wires the pipeline together. The ring buffer is owned by
// the pipeline for its whole lifetime; spectrum frames and peak slices are
// rebuilt every tick.
func NewOrchestrator(
	ring *audio.RingBuffer,
	source Source,
	analyzer *analysis.SpectralAnalyzer,
	detector *analysis.PeakDetector,
	renderer Renderer,
	interval time.Duration,
) *Orchestrator {
	if renderer == nil {
		renderer = LogRenderer{}
	}
	return &Orchestrator{
		ring:     ring,
		source:   source,
		analyzer: analyzer,
		detector: detector,
		renderer: renderer,
		interval: interval,
	}
}

// SetRenderer installs the renderer. Must be called before Start; the TUI
// renderer needs the orchestrator as its controller, so construction happens
// in two steps.
func (o *Orchestrator) SetRenderer(r Renderer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		applog.Warnf("Pipeline: SetRenderer ignored while running")
		return
	}
	o.renderer = r
}

// Start transitions Idle -> Running: starts the capture source, then the
// tick loop. A capture failure (typically a DeviceError) is returned and the
// orchestrator stays Idle. Start while Running is a no-op with a warning.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		applog.Warnf("Pipeline: Start called but already running")
		return nil
	}

	if err := o.source.Start(); err != nil {
		return err
	}

	o.ticker = time.NewTicker(o.interval)
	o.done = make(chan struct{})
	o.running = true

	o.wg.Add(1)
	go o.run(o.ticker, o.done)

	o.renderer.OnStatus("recording")
	return nil
}

// Stop transitions Running -> Idle: cancels the tick loop, then stops the
// capture source. Idempotent: calling Stop when Idle is a no-op.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	o.ticker.Stop()
	close(o.done)
	o.mu.Unlock()

	o.wg.Wait()

	err := o.source.Stop()
	o.renderer.OnStatus("stopped")
	return err
}

// Clear empties the ring buffer and notifies the renderer. Valid in either
// state.
func (o *Orchestrator) Clear() {
	o.ring.Clear()
	o.renderer.OnCleared()
}

// Running reports whether the orchestrator is in the Running state.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// run is the tick loop. Ticks that fire while Tick is still executing are
// dropped, never queued: the ticker channel holds at most one pending tick,
// and that one is stale by the time a slow Tick returns, so it is drained
// before the next select.
func (o *Orchestrator) run(ticker *time.Ticker, done chan struct{}) {
	defer o.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			o.Tick()
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// Tick runs one snapshot-analyze-detect-publish pass. An empty snapshot
// skips the tick silently; no result reaches the renderer. Exported so tests
// (and one-shot tools) can drive the pipeline without the ticker.
func (o *Orchestrator) Tick() {
	snapshot := o.ring.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	frame, err := o.analyzer.Analyze(snapshot)
	if err != nil {
		if !errors.Is(err, analysis.ErrInsufficientData) {
			applog.Warnf("Pipeline: analysis failed: %v", err)
		}
		return
	}

	peaks := o.detector.Detect(frame)

	o.renderer.OnResult(&PipelineResult{
		Waveform: snapshot,
		Spectrum: frame,
		Peaks:    peaks,
	})
}
