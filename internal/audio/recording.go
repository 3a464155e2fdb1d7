// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"

	applog "specmon/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder tees the capture stream into a WAV file. It is attached to the
// CaptureSource atomically so the callback sees either no recorder or a fully
// initialized one.
type Recorder struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *goaudio.IntBuffer
	scale   float64
	failed  bool // set after a write error; further writes are skipped
}

// StartRecording begins dumping the capture stream to filename. Returns an
// error if a recording is already active or the file cannot be created.
func (c *CaptureSource) StartRecording(filename string) error {
	if c.recorder.Load() != nil {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	bitDepth := c.cfg.Recording.BitDepth
	channels := c.cfg.Audio.Channels
	encoder := wav.NewEncoder(file, int(c.cfg.Audio.SampleRate), bitDepth, channels, 1)

	rec := &Recorder{
		file:    file,
		encoder: encoder,
		scale:   float64(int64(1)<<(bitDepth-1)) - 1,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: channels,
				SampleRate:  int(c.cfg.Audio.SampleRate),
			},
			SourceBitDepth: bitDepth,
			Data:           make([]int, c.cfg.Audio.BlockSize*channels),
		},
	}

	c.recorder.Store(rec)
	applog.Infof("Capture: recording to %s (%d-bit)", filename, bitDepth)
	return nil
}

// StopRecording finishes the WAV file. No-op if not recording.
func (c *CaptureSource) StopRecording() error {
	rec := c.recorder.Swap(nil)
	if rec == nil {
		return nil
	}

	if err := rec.encoder.Close(); err != nil {
		rec.file.Close()
		return err
	}
	return rec.file.Close()
}

// write converts an interleaved float32 block to PCM and appends it to the
// WAV file. Called from the capture callback; a write failure logs once and
// disables further writes rather than disturbing capture.
func (r *Recorder) write(in []float32, frames int) {
	if r.failed {
		return
	}

	r.buf.Data = r.buf.Data[:cap(r.buf.Data)]

	channels := r.buf.Format.NumChannels
	n := frames * channels
	if n > len(in) {
		n = len(in)
	}
	if n > len(r.buf.Data) {
		n = len(r.buf.Data)
	}
	for i := 0; i < n; i++ {
		r.buf.Data[i] = int(float64(in[i]) * r.scale)
	}
	r.buf.Data = r.buf.Data[:n]

	if err := r.encoder.Write(r.buf); err != nil {
		r.failed = true
		applog.Errorf("Capture: WAV write failed, recording disabled: %v", err)
	}
}
