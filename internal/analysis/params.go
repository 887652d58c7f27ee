// Package analysis turns audio chunks into per-frame visual control parameters:
// band energies from a windowed FFT, onset detection on the energy stream, and
// exponential smoothing of the combined result.
//
// Nothing in this package is safe for concurrent use. Every type is owned by
// the render goroutine.
package analysis

import (
	"time"

	"github.com/tphakala/audiopulse/internal/errors"
)

// ComponentAnalysis identifies analysis errors
const ComponentAnalysis = "analysis"

// BandEnergies holds normalized band levels in [0, 1].
type BandEnergies struct {
	Bass   float64
	Mid    float64
	Treble float64
}

// Spectrum is the result of one analysis pass.
type Spectrum struct {
	Bands BandEnergies

	// Amplitude is the RMS of the newly analysed samples in [0, 1]
	Amplitude float64
}

// AudioParameters is the per-frame output handed to visualizers.
type AudioParameters struct {
	Bass      float64
	Mid       float64
	Treble    float64
	Amplitude float64
	Beat      bool
}

// BandEdges are the band boundaries in Hz. Bass covers [BassLow, MidLow),
// mid [MidLow, TrebleLow), treble [TrebleLow, TrebleHigh].
type BandEdges struct {
	BassLow    float64
	MidLow     float64
	TrebleLow  float64
	TrebleHigh float64
}

// AnalyzerConfig configures the spectral analyzer.
type AnalyzerConfig struct {
	WindowSize     int
	Bands          BandEdges
	ReferenceDecay float64
	ReferenceFloor float64
}

// BeatConfig configures the beat detector.
type BeatConfig struct {
	Sensitivity   float64
	Cooldown      time.Duration
	MinimumEnergy float64
	HistorySize   int
}

// Config groups all analysis settings.
type Config struct {
	Analyzer  AnalyzerConfig
	Beat      BeatConfig
	Smoothing float64
}

const (
	DefaultWindowSize     = 2048
	DefaultReferenceDecay = 0.995
	DefaultReferenceFloor = 0.005

	DefaultSensitivity   = 1.0
	DefaultCooldown      = 100 * time.Millisecond
	DefaultMinimumEnergy = 0.1
	DefaultHistorySize   = 10

	DefaultSmoothing = 0.15

	// beatThresholdRatio is the energy-to-average ratio at sensitivity 1
	beatThresholdRatio = 1.5
)

// DefaultBandEdges returns the standard bass/mid/treble split.
func DefaultBandEdges() BandEdges {
	return BandEdges{
		BassLow:    20,
		MidLow:     250,
		TrebleLow:  4000,
		TrebleHigh: 20000,
	}
}

// DefaultConfig returns analysis settings with all defaults applied.
func DefaultConfig() Config {
	return Config{
		Analyzer: AnalyzerConfig{
			WindowSize:     DefaultWindowSize,
			Bands:          DefaultBandEdges(),
			ReferenceDecay: DefaultReferenceDecay,
			ReferenceFloor: DefaultReferenceFloor,
		},
		Beat: BeatConfig{
			Sensitivity:   DefaultSensitivity,
			Cooldown:      DefaultCooldown,
			MinimumEnergy: DefaultMinimumEnergy,
			HistorySize:   DefaultHistorySize,
		},
		Smoothing: DefaultSmoothing,
	}
}

// Validate checks the configuration and reports the first invalid field.
func (c Config) Validate() error {
	b := c.Analyzer.Bands
	switch {
	case c.Analyzer.WindowSize < 2:
		return invalidConfig("window_size", c.Analyzer.WindowSize, "must be at least 2")
	case b.BassLow < 0 || b.MidLow <= b.BassLow || b.TrebleLow <= b.MidLow || b.TrebleHigh <= b.TrebleLow:
		return invalidConfig("bands", b, "edges must be ascending and non-negative")
	case c.Analyzer.ReferenceDecay <= 0 || c.Analyzer.ReferenceDecay > 1:
		return invalidConfig("reference_decay", c.Analyzer.ReferenceDecay, "must be in (0, 1]")
	case c.Analyzer.ReferenceFloor <= 0:
		return invalidConfig("reference_floor", c.Analyzer.ReferenceFloor, "must be positive")
	case c.Beat.Sensitivity <= 0:
		return invalidConfig("beat_sensitivity", c.Beat.Sensitivity, "must be positive")
	case c.Beat.Cooldown < 0:
		return invalidConfig("beat_cooldown", c.Beat.Cooldown, "must not be negative")
	case c.Beat.MinimumEnergy < 0:
		return invalidConfig("minimum_energy_floor", c.Beat.MinimumEnergy, "must not be negative")
	case c.Beat.HistorySize < 1:
		return invalidConfig("beat_history", c.Beat.HistorySize, "must be at least 1")
	case c.Smoothing <= 0 || c.Smoothing > 1:
		return invalidConfig("smoothing_factor", c.Smoothing, "must be in (0, 1]")
	}
	return nil
}

func invalidConfig(field string, value any, reason string) error {
	return errors.Newf("invalid analysis setting %s=%v: %s", field, value, reason).
		Component(ComponentAnalysis).
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}
