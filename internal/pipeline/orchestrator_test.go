// SPDX-License-Identifier: MIT
package pipeline

import (
	"sync"
	"testing"
	"time"

	"specmon/internal/analysis"
	"specmon/internal/audio"
	"specmon/internal/config"
	"specmon/pkg/testsignal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource stands in for the PortAudio capture source.
type fakeSource struct {
	mu       sync.Mutex
	startErr error
	starts   int
	stops    int
}

func (f *fakeSource) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSource) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// mockRenderer records every delivery for inspection.
type mockRenderer struct {
	mu       sync.Mutex
	results  []*PipelineResult
	cleared  int
	statuses []string
}

func (m *mockRenderer) OnResult(result *PipelineResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *mockRenderer) OnCleared() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
}

func (m *mockRenderer) OnStatus(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, text)
}

func (m *mockRenderer) resultCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func (m *mockRenderer) lastResult() *PipelineResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.results) == 0 {
		return nil
	}
	return m.results[len(m.results)-1]
}

func (m *mockRenderer) clearedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

func newTestPipeline(t *testing.T, source Source, renderer Renderer, interval time.Duration) (*Orchestrator, *audio.RingBuffer) {
	t.Helper()

	ring, err := audio.NewRingBuffer(44100 * 5)
	require.NoError(t, err)

	analyzer, err := analysis.NewSpectralAnalyzer(44100, config.DefaultMinFreq)
	require.NoError(t, err)

	detector, err := analysis.NewPeakDetector(config.DefaultTopK,
		config.DefaultPeakMinSeparation, config.DefaultPeakHeightFraction)
	require.NoError(t, err)

	return NewOrchestrator(ring, source, analyzer, detector, renderer, interval), ring
}

func TestTickEndToEnd(t *testing.T) {
	renderer := &mockRenderer{}
	o, ring := newTestPipeline(t, &fakeSource{}, renderer, config.DefaultTickInterval)

	// One second of a pure 220 Hz tone, one manual tick.
	snapshot := testsignal.Sine(44100, 220, 0.8, 44100)
	ring.Write(snapshot)
	o.Tick()

	require.Equal(t, 1, renderer.resultCount())
	result := renderer.lastResult()

	assert.Len(t, result.Waveform, 44100)

	// Spectrum length: floor(N/2)+1 minus the bins below 20 Hz. At a 1 Hz
	// bin width those are bins 0..19.
	assert.Equal(t, 44100/2+1-20, result.Spectrum.Len())

	require.NotEmpty(t, result.Peaks)
	binWidth := 44100.0 / float64(len(snapshot))
	assert.InDelta(t, 220.0, result.Peaks[0].FrequencyHz, binWidth)
	assert.Equal(t, 0, result.Peaks[0].Rank)
}

func TestTickSkipsEmptyBuffer(t *testing.T) {
	renderer := &mockRenderer{}
	o, _ := newTestPipeline(t, &fakeSource{}, renderer, config.DefaultTickInterval)

	// Empty snapshot: the tick is skipped silently, nothing is published.
	o.Tick()
	assert.Zero(t, renderer.resultCount())
}

func TestStartStopStateMachine(t *testing.T) {
	source := &fakeSource{}
	renderer := &mockRenderer{}
	o, _ := newTestPipeline(t, source, renderer, time.Hour)

	assert.False(t, o.Running())

	require.NoError(t, o.Start())
	assert.True(t, o.Running())

	// Start while Running is a no-op: the source is not started twice.
	require.NoError(t, o.Start())
	starts, _ := source.counts()
	assert.Equal(t, 1, starts)

	require.NoError(t, o.Stop())
	assert.False(t, o.Running())
	_, stops := source.counts()
	assert.Equal(t, 1, stops)

	// Stop while Idle is a no-op with no error.
	require.NoError(t, o.Stop())
	_, stops = source.counts()
	assert.Equal(t, 1, stops)

	// The cycle can be repeated.
	require.NoError(t, o.Start())
	require.NoError(t, o.Stop())
	starts, stops = source.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
}

func TestStartFailureStaysIdle(t *testing.T) {
	source := &fakeSource{startErr: &audio.DeviceError{Device: "default", Err: assert.AnError}}
	renderer := &mockRenderer{}
	o, _ := newTestPipeline(t, source, renderer, time.Hour)

	err := o.Start()
	require.Error(t, err)

	var devErr *audio.DeviceError
	assert.ErrorAs(t, err, &devErr)
	assert.False(t, o.Running())

	// A failed start leaves the pipeline usable once the device recovers.
	source.mu.Lock()
	source.startErr = nil
	source.mu.Unlock()
	require.NoError(t, o.Start())
	assert.True(t, o.Running())
	require.NoError(t, o.Stop())
}

func TestClearNotifiesRenderer(t *testing.T) {
	renderer := &mockRenderer{}
	o, ring := newTestPipeline(t, &fakeSource{}, renderer, time.Hour)

	ring.Write([]float64{0.1, 0.2, 0.3})

	// Clear is valid while Idle.
	o.Clear()
	assert.Equal(t, 1, renderer.clearedCount())
	assert.Zero(t, ring.Len())

	// And while Running.
	require.NoError(t, o.Start())
	o.Clear()
	assert.Equal(t, 2, renderer.clearedCount())
	require.NoError(t, o.Stop())

	// A tick after clear publishes nothing.
	o.Tick()
	assert.Zero(t, renderer.resultCount())
}

func TestTickerPublishesResults(t *testing.T) {
	renderer := &mockRenderer{}
	o, ring := newTestPipeline(t, &fakeSource{}, renderer, 5*time.Millisecond)

	ring.Write(testsignal.Sine(4096, 440, 0.8, 44100))

	require.NoError(t, o.Start())
	defer o.Stop()

	require.Eventually(t, func() bool {
		return renderer.resultCount() >= 2
	}, time.Second, time.Millisecond, "expected periodic results from the tick loop")
}

// blockingRenderer stalls every delivery, standing in for an analysis or
// render pass that overruns the tick interval.
type blockingRenderer struct {
	mu    sync.Mutex
	count int
	delay time.Duration
}

func (b *blockingRenderer) OnResult(*PipelineResult) {
	b.mu.Lock()
	b.count++
	b.mu.Unlock()
	time.Sleep(b.delay)
}

func (b *blockingRenderer) OnCleared()      {}
func (b *blockingRenderer) OnStatus(string) {}

func (b *blockingRenderer) resultCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func TestSlowTickDropsIntermediateTicks(t *testing.T) {
	const (
		interval = 5 * time.Millisecond
		delay    = 40 * time.Millisecond
	)

	renderer := &blockingRenderer{delay: delay}
	o, ring := newTestPipeline(t, &fakeSource{}, renderer, interval)
	ring.Write(testsignal.Sine(2048, 440, 0.8, 44100))

	start := time.Now()
	require.NoError(t, o.Start())
	time.Sleep(6 * delay)
	require.NoError(t, o.Stop())
	elapsed := time.Since(start)

	got := renderer.resultCount()
	require.GreaterOrEqual(t, got, 2, "the loop must keep ticking past a slow delivery")

	// Ticks that fire while a delivery is in flight are dropped, never
	// queued, so the result count tracks the delivery time rather than the
	// tick interval. A queueing loop would produce roughly one result per
	// interval (dozens here) as it worked through the backlog.
	maxResults := int(elapsed/delay) + 2
	assert.LessOrEqualf(t, got, maxResults,
		"%d results in %v; a %v delivery should bound this near %d", got, elapsed, delay, maxResults)
}

func TestMultiRendererFansOut(t *testing.T) {
	a := &mockRenderer{}
	b := &mockRenderer{}
	multi := MultiRenderer{a, b}

	multi.OnResult(&PipelineResult{})
	multi.OnCleared()
	multi.OnStatus("recording")

	for _, r := range []*mockRenderer{a, b} {
		assert.Equal(t, 1, r.resultCount())
		assert.Equal(t, 1, r.clearedCount())
	}
}
