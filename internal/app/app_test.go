package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/audiocore/sources"
	"github.com/tphakala/audiopulse/internal/conf"
	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Main.Name = "test"
	s.Main.Log.Level = "info"
	s.Audio = conf.AudioSettings{
		Source:       sources.BackendSynth,
		Waveform:     "pulse",
		Frequency:    440,
		SampleRate:   8000,
		Channels:     1,
		BufferFrames: 160,
		Gain:         1,
	}
	s.Analysis = conf.AnalysisSettings{
		WindowSize:     256,
		Bands:          conf.BandSettings{BassLow: 20, MidLow: 250, TrebleLow: 2000, TrebleHigh: 4000},
		Smoothing:      0.5,
		ReferenceDecay: 0.995,
		ReferenceFloor: 0.005,
	}
	s.Beat = conf.BeatSettings{Sensitivity: 1, CooldownMs: 100, MinimumEnergy: 0.1, History: 10}
	s.Pipeline = conf.PipelineSettings{RingCapacity: 64, TargetFPS: 100, MaxChunksPerFrame: 32}
	s.Visualizer = conf.VisualizerSettings{
		Type:        "meter",
		Width:       60,
		LogInterval: time.Second,
		Effects: []conf.EffectSettings{
			{Name: "beatflash", Enabled: true, Intensity: 1},
			{Name: "peakhold", Enabled: true, Intensity: 0.02},
		},
	}
	s.Telemetry = conf.TelemetrySettings{Listen: "127.0.0.1:0"}
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeDevice never produces audio and records lifecycle calls.
type fakeDevice struct {
	startErr error
	started  atomic.Bool
	stopped  atomic.Int32
}

func (d *fakeDevice) Start(ctx context.Context) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.started.Store(true)
	return nil
}

func (d *fakeDevice) Stop() error {
	d.stopped.Add(1)
	d.started.Store(false)
	return nil
}

func (d *fakeDevice) IsActive() bool { return d.started.Load() }

func (d *fakeDevice) TryRead() (*audiocore.AudioChunk, bool) { return nil, false }

func (d *fakeDevice) Config() audiocore.DeviceConfig {
	return audiocore.DeviceConfig{SampleRate: 8000, Channels: 1, BufferFrames: 160}
}

func factoryFor(dev audiocore.CaptureDevice) DeviceFactory {
	return func(sources.Config) (audiocore.CaptureDevice, error) { return dev, nil }
}

func TestRun_SynthPipeline(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	a, err := New(testSettings(), WithOutput(&out), WithLogger(discardLogger()))
	require.NoError(t, err)
	require.Len(t, a.RunID(), 8)

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Greater(t, len(lines), 5, "one meter line per frame")
	assert.Contains(t, lines[0], "BASS [")

	reg := a.Metrics().Registry()
	families, err := reg.Gather()
	require.NoError(t, err)

	values := counterTotals(families)
	assert.Positive(t, values["audiopulse_frames_total"])
	assert.Positive(t, values["audiopulse_chunks_pushed_total"])
	count, err := testutil.GatherAndCount(reg, "audiopulse_ring_capacity_chunks")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// counterTotals sums every counter family by name
func counterTotals(families []*dto.MetricFamily) map[string]float64 {
	totals := make(map[string]float64)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			totals[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	return totals
}

func TestRun_StopsDeviceOnCancel(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := testSettings()
	s.Visualizer.Type = "none"
	a, err := New(s, WithDeviceFactory(factoryFor(dev)), WithLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, dev.IsActive, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, int32(1), dev.stopped.Load())
}

func TestRun_DeviceStartFailure(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{startErr: audiocore.ErrDeviceUnavailable}
	a, err := New(testSettings(), WithDeviceFactory(factoryFor(dev)),
		WithOutput(&bytes.Buffer{}), WithLogger(discardLogger()))
	require.NoError(t, err)

	err = a.Run(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, audiocore.ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "error starting synth capture source")
	assert.Zero(t, dev.stopped.Load(), "a device that never started is not stopped")
}

func TestRun_DeviceFactoryFailure(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Audio.Source = sources.BackendFile
	s.Audio.File = "clip.aiff"
	a, err := New(s, WithOutput(&bytes.Buffer{}), WithLogger(discardLogger()))
	require.NoError(t, err)

	err = a.Run(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestRun_TelemetryListenFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := testSettings()
	s.Visualizer.Type = "none"
	s.Telemetry.Enabled = true
	s.Telemetry.Listen = "127.0.0.1:-1"
	a, err := New(s, WithDeviceFactory(factoryFor(dev)), WithLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	err = a.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	assert.Equal(t, int32(1), dev.stopped.Load())
}

func TestRun_OnlyOnce(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Visualizer.Type = "none"
	a, err := New(s, WithDeviceFactory(factoryFor(&fakeDevice{})), WithLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, a.Run(ctx))

	err = a.Run(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestRun_RingMetricsFailureOpensNothing(t *testing.T) {
	t.Parallel()

	var created atomic.Int32
	factory := func(sources.Config) (audiocore.CaptureDevice, error) {
		created.Add(1)
		return &fakeDevice{}, nil
	}
	var out bytes.Buffer
	a, err := New(testSettings(), WithDeviceFactory(factory), WithOutput(&out), WithLogger(discardLogger()))
	require.NoError(t, err)

	// Ring gauges already registered: the run's registration conflicts
	require.NoError(t, a.Metrics().Pipeline.ObserveRing(func() int { return 0 }, 1))

	err = a.Run(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error registering ring metrics")
	assert.Zero(t, created.Load(), "no capture source is created")
	assert.Zero(t, out.Len(), "no visualizer output")
}

func TestRun_InvalidAnalysisSettings(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	s := testSettings()
	s.Analysis.Bands.MidLow = 10
	a, err := New(s, WithDeviceFactory(factoryFor(dev)), WithLogger(discardLogger()))
	require.NoError(t, err)

	require.Error(t, a.Run(t.Context()))
	assert.False(t, dev.started.Load(), "configuration errors are reported before capture starts")
}

// eventTransport implements sentry.Transport and records events
type eventTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

//nolint:gocritic // hugeParam: interface requirement
func (t *eventTransport) Configure(_ sentry.ClientOptions) {}

func (t *eventTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *eventTransport) Flush(_ time.Duration) bool { return true }

func (t *eventTransport) FlushWithContext(_ context.Context) bool { return true }

func (t *eventTransport) Close() {}

func (t *eventTransport) components() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, e := range t.events {
		out = append(out, e.Tags["component"])
	}
	return out
}

func TestRun_ReportsTelemetryFailure(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Visualizer.Type = "none"
	s.Telemetry.Enabled = true
	s.Telemetry.Listen = "127.0.0.1:-1"
	s.Telemetry.Sentry = conf.SentrySettings{Enabled: true, Environment: "test"}

	transport := &eventTransport{}
	a, err := New(s, WithDeviceFactory(factoryFor(&fakeDevice{})),
		WithLogger(discardLogger()), WithErrorTransport(transport))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	require.Error(t, a.Run(ctx))
	assert.Contains(t, transport.components(), observability.ComponentTelemetry)
}
