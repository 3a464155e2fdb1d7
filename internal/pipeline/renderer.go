// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"strings"

	"specmon/internal/analysis"
	applog "specmon/internal/log"
)

// PipelineResult is the tuple published to the renderer once per tick:
// the waveform snapshot the tick analyzed, its spectrum, and the ranked
// dominant-frequency peaks.
type PipelineResult struct {
	Waveform []float64              `json:"waveform"`
	Spectrum analysis.SpectrumFrame `json:"spectrum"`
	Peaks    []analysis.Peak        `json:"peaks"`
}

// Renderer consumes pipeline output. The orchestrator guarantees ordered,
// non-overlapping delivery of at most one result per tick interval; the
// renderer decides how (or whether) to display it.
type Renderer interface {
	OnResult(result *PipelineResult)
	OnCleared()
	OnStatus(text string)
}

// MultiRenderer fans out to several renderers in order.
type MultiRenderer []Renderer

func (m MultiRenderer) OnResult(result *PipelineResult) {
	for _, r := range m {
		r.OnResult(result)
	}
}

func (m MultiRenderer) OnCleared() {
	for _, r := range m {
		r.OnCleared()
	}
}

func (m MultiRenderer) OnStatus(text string) {
	for _, r := range m {
		r.OnStatus(text)
	}
}

// LogRenderer writes a one-line peak summary per result to the application
// log. It is the default surface when neither the TUI nor the WebSocket
// transport is enabled.
type LogRenderer struct{}

func (LogRenderer) OnResult(result *PipelineResult) {
	if len(result.Peaks) == 0 {
		applog.Debugf("Pipeline: no peaks (%d samples)", len(result.Waveform))
		return
	}

	var b strings.Builder
	for i, p := range result.Peaks {
		if i == 5 {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%.1fHz", p.FrequencyHz)
	}
	applog.Infof("Pipeline: top peaks: %s", b.String())
}

func (LogRenderer) OnCleared() {
	applog.Infof("Pipeline: buffer cleared")
}

func (LogRenderer) OnStatus(text string) {
	applog.Infof("Pipeline: %s", text)
}
