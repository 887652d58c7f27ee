package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiopulse/internal/analysis"
	"github.com/tphakala/audiopulse/internal/visualizer"
)

func TestAnalysisConfig(t *testing.T) {
	t.Parallel()

	cfg := AnalysisConfig(testSettings())

	assert.Equal(t, 256, cfg.Analyzer.WindowSize)
	assert.Equal(t, analysis.BandEdges{BassLow: 20, MidLow: 250, TrebleLow: 2000, TrebleHigh: 4000}, cfg.Analyzer.Bands)
	assert.Equal(t, 100*time.Millisecond, cfg.Beat.Cooldown)
	assert.Equal(t, 10, cfg.Beat.HistorySize)
	assert.InDelta(t, 0.5, cfg.Smoothing, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestSourceAndSchedulerConfig(t *testing.T) {
	t.Parallel()

	s := testSettings()
	src := SourceConfig(s)
	assert.Equal(t, "synth", src.Backend)
	assert.Equal(t, 8000, src.SampleRate)
	assert.Equal(t, 160, src.BufferFrames)

	sched := SchedulerConfig(s)
	assert.Equal(t, 10*time.Millisecond, sched.FrameInterval())
	assert.Equal(t, 32, sched.MaxChunksPerFrame)
}

func TestVisualizerConfig(t *testing.T) {
	t.Parallel()

	cfg := VisualizerConfig(testSettings())
	assert.Equal(t, "meter", cfg.Type)
	assert.Equal(t, 60, cfg.Width)
	assert.Equal(t, []visualizer.EffectConfig{
		{Name: "beatflash", Enabled: true, Intensity: 1},
		{Name: "peakhold", Enabled: true, Intensity: 0.02},
	}, cfg.Effects)
}

// SetupLogging changes the global level, so these run sequentially.
func TestSetupLogging(t *testing.T) {
	tests := []struct {
		level string
		debug bool
	}{
		{"info", false},
		{"WARNING", false},
		{"trace", false},
		{"error", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			s := testSettings()
			s.Main.Log.Level = tt.level
			s.Debug = tt.debug

			logger, closeFn, err := SetupLogging(s)
			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.NoError(t, closeFn())
		})
	}

	s := testSettings()
	s.Main.Log.Level = "loud"
	_, _, err := SetupLogging(s)
	assert.Error(t, err)
}
