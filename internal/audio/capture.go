// SPDX-License-Identifier: MIT
/*
Package audio implements the capture side of the pipeline:
- Fixed-capacity ring buffer shared between the audio driver and the analyzer
- PortAudio input stream with a branch-light, allocation-free callback
- Optional WAV dump of the capture stream

Thread Safety:
- The capture callback runs on the audio driver's thread; it only converts
  the selected channel and writes into the ring buffer
- Stream lifecycle (open/start/stop/close) happens on the caller's goroutine
- Recording state is an atomic flag so the callback never takes a lock for it
*/
package audio

import (
	"sync/atomic"
	"time"

	"specmon/internal/config"
	applog "specmon/internal/log"

	"github.com/gordonklaus/portaudio"
)

// statusWarnInterval rate-limits overflow/underflow warnings so a struggling
// device cannot flood the log from the audio thread.
const statusWarnInterval = time.Second

// CaptureSource owns the PortAudio input stream and feeds the ring buffer.
// Start opens and starts the stream; Stop halts delivery and releases the
// device on all paths. Both are caller-triggered, never driver-triggered.
type CaptureSource struct {
	cfg  *config.Config
	ring *RingBuffer

	stream *portaudio.Stream
	device *portaudio.DeviceInfo

	// Pre-allocated mono block the callback fills from the interleaved input.
	monoBlock []float64

	// Driver status accounting.
	statusCount  atomic.Uint64
	lastWarnNano atomic.Int64

	recorder atomic.Pointer[Recorder] // nil unless recording is active
}

// NewCaptureSource creates a capture source feeding ring. The ring buffer is
// owned by the pipeline; the source only writes into it.
func NewCaptureSource(cfg *config.Config, ring *RingBuffer) *CaptureSource {
	return &CaptureSource{
		cfg:       cfg,
		ring:      ring,
		monoBlock: make([]float64, cfg.Audio.BlockSize),
	}
}

// Start resolves the input device and opens the capture stream. Any failure
// is returned as a DeviceError and leaves no device handle open.
func (c *CaptureSource) Start() error {
	device, err := InputDevice(c.cfg.Audio.DeviceID)
	if err != nil {
		return err
	}
	c.device = device

	latency := device.DefaultHighInputLatency
	if c.cfg.Audio.LowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: c.cfg.Audio.Channels,
			Latency:  latency,
		},
		SampleRate:      c.cfg.Audio.SampleRate,
		FramesPerBuffer: c.cfg.Audio.BlockSize,
	}

	stream, err := portaudio.OpenStream(params, c.processInput)
	if err != nil {
		return &DeviceError{Device: device.Name, Err: err}
	}

	if err := stream.Start(); err != nil {
		stream.Close() // release on the error path too
		return &DeviceError{Device: device.Name, Err: err}
	}

	c.stream = stream
	applog.Infof("Capture: stream started (device=%q rate=%.0f block=%d channels=%d)",
		device.Name, c.cfg.Audio.SampleRate, c.cfg.Audio.BlockSize, c.cfg.Audio.Channels)
	return nil
}

// Stop halts delivery and releases the device. Idempotent: safe to call when
// the stream was never started or is already stopped.
func (c *CaptureSource) Stop() error {
	if c.stream == nil {
		return nil
	}

	// Close releases the device even if Stop on the stream fails.
	stopErr := c.stream.Stop()
	closeErr := c.stream.Close()
	c.stream = nil

	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

// StatusCount reports how many driver overflow/underflow events were seen.
func (c *CaptureSource) StatusCount() uint64 {
	return c.statusCount.Load()
}

// processInput is the capture callback.
// Performance Critical:
// - Runs on the audio driver's thread with a hard delivery deadline
// - Uses pre-allocated buffers only; no allocations, no blocking
// - Extracts channel 0 from the interleaved input and writes to the ring
func (c *CaptureSource) processInput(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags != 0 {
		c.noteStatus(flags)
	}

	channels := c.cfg.Audio.Channels
	frames := len(in) / channels
	if frames > len(c.monoBlock) {
		frames = len(c.monoBlock)
	}
	for i := 0; i < frames; i++ {
		c.monoBlock[i] = float64(in[i*channels])
	}

	c.ring.Write(c.monoBlock[:frames])

	if rec := c.recorder.Load(); rec != nil {
		rec.write(in, frames)
	}
}

// noteStatus records a driver status flag (overrun/underrun). The stream
// continues; the event is a recoverable warning, rate-limited to one log
// line per statusWarnInterval.
func (c *CaptureSource) noteStatus(flags portaudio.StreamCallbackFlags) {
	total := c.statusCount.Add(1)

	now := time.Now().UnixNano()
	last := c.lastWarnNano.Load()
	if now-last < int64(statusWarnInterval) {
		return
	}
	if c.lastWarnNano.CompareAndSwap(last, now) {
		applog.Warnf("Capture: stream status flags=%#x (%d events total)", uint(flags), total)
	}
}
