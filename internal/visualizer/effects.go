package visualizer

import (
	"fmt"
	"strings"

	"github.com/tphakala/audiopulse/internal/analysis"
	"github.com/tphakala/audiopulse/internal/errors"
)

// Bar indices within a Frame
const (
	BarBass = iota
	BarMid
	BarTreble
	BarAmplitude
	barCount
)

// Frame is what a visualizer draws: bar levels in [0, 1], falling peak
// markers and a flash level for beat feedback.
type Frame struct {
	Bars  [barCount]float64
	Peaks [barCount]float64
	Flash float64
	Beat  bool
}

// Effect modifies a frame before it is drawn.
type Effect interface {
	Name() string
	Enabled() bool
	Intensity() float64
	Apply(frame *Frame, params analysis.AudioParameters)
}

// EffectConfig enables and tunes a built-in effect by name
type EffectConfig struct {
	Name      string  `yaml:"name" mapstructure:"name"`
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	Intensity float64 `yaml:"intensity" mapstructure:"intensity"`
}

// effectBase carries the state every effect shares
type effectBase struct {
	name      string
	enabled   bool
	intensity float64
}

func (e *effectBase) Name() string       { return e.name }
func (e *effectBase) Enabled() bool      { return e.enabled }
func (e *effectBase) Intensity() float64 { return e.intensity }

// beatFlashDecay is the per-frame fade of a beat flash
const beatFlashDecay = 0.85

// BeatFlash raises every bar to the flash level on a beat and lets it fade.
type BeatFlash struct {
	effectBase
	decay float64
	level float64
}

// NewBeatFlash creates a beat flash. decay is the per-frame fade factor.
func NewBeatFlash(intensity, decay float64) *BeatFlash {
	return &BeatFlash{
		effectBase: effectBase{name: "beatflash", enabled: true, intensity: intensity},
		decay:      decay,
	}
}

func (b *BeatFlash) Apply(frame *Frame, params analysis.AudioParameters) {
	if params.Beat {
		b.level = b.intensity
	} else {
		b.level *= b.decay
		if b.level < 0.01 {
			b.level = 0
		}
	}

	frame.Flash = max(frame.Flash, b.level)
	for i := range frame.Bars {
		frame.Bars[i] = max(frame.Bars[i], b.level)
	}
}

// Gain scales the bars by its intensity
type Gain struct {
	effectBase
}

// NewGain creates a gain effect
func NewGain(intensity float64) *Gain {
	return &Gain{effectBase{name: "gain", enabled: true, intensity: intensity}}
}

func (g *Gain) Apply(frame *Frame, _ analysis.AudioParameters) {
	for i := range frame.Bars {
		frame.Bars[i] *= g.intensity
	}
}

// PeakHold keeps a marker at each bar's recent maximum that falls by
// intensity per frame.
type PeakHold struct {
	effectBase
	peaks [barCount]float64
}

// NewPeakHold creates a peak hold effect
func NewPeakHold(fall float64) *PeakHold {
	return &PeakHold{effectBase: effectBase{name: "peakhold", enabled: true, intensity: fall}}
}

func (p *PeakHold) Apply(frame *Frame, _ analysis.AudioParameters) {
	for i, level := range frame.Bars {
		p.peaks[i] = max(level, p.peaks[i]-p.intensity)
		frame.Peaks[i] = p.peaks[i]
	}
}

// NewEffect builds a built-in effect from configuration. Intensity must lie
// in [0, 1]; zero is a real setting, not a request for the default.
func NewEffect(cfg EffectConfig) (Effect, error) {
	if cfg.Intensity < 0 || cfg.Intensity > 1 {
		return nil, errors.New(nil).
			Component(ComponentVisualizer).
			Category(errors.CategoryValidation).
			Context("effect", cfg.Name).
			Context("intensity", cfg.Intensity).
			Context("error", fmt.Sprintf("effect %s intensity must be within [0, 1]", cfg.Name)).
			Build()
	}

	var effect Effect
	switch strings.ToLower(cfg.Name) {
	case "beatflash":
		effect = NewBeatFlash(cfg.Intensity, beatFlashDecay)
	case "gain":
		effect = NewGain(cfg.Intensity)
	case "peakhold":
		effect = NewPeakHold(cfg.Intensity)
	default:
		return nil, errors.New(nil).
			Component(ComponentVisualizer).
			Category(errors.CategoryConfiguration).
			Context("effect", cfg.Name).
			Context("error", fmt.Sprintf("unknown effect: %s", cfg.Name)).
			Build()
	}

	setEnabled(effect, cfg.Enabled)
	return effect, nil
}

func setEnabled(effect Effect, enabled bool) {
	switch e := effect.(type) {
	case *BeatFlash:
		e.enabled = enabled
	case *Gain:
		e.enabled = enabled
	case *PeakHold:
		e.enabled = enabled
	}
}

// EffectChain applies effects in order
type EffectChain struct {
	effects []Effect
}

// NewEffectChain creates a chain from effects
func NewEffectChain(effects ...Effect) *EffectChain {
	return &EffectChain{effects: effects}
}

// BuildEffectChain creates a chain from configuration, in the configured order
func BuildEffectChain(configs []EffectConfig) (*EffectChain, error) {
	chain := NewEffectChain()
	for _, cfg := range configs {
		effect, err := NewEffect(cfg)
		if err != nil {
			return nil, err
		}
		chain.Add(effect)
	}
	return chain, nil
}

// Add appends an effect
func (c *EffectChain) Add(effect Effect) {
	c.effects = append(c.effects, effect)
}

// Effects returns the effects in application order
func (c *EffectChain) Effects() []Effect {
	return c.effects
}

// Apply builds a frame from params and runs every enabled effect over it.
// Bars and peaks are clamped to [0, 1] afterwards.
func (c *EffectChain) Apply(params analysis.AudioParameters) Frame {
	frame := Frame{
		Bars: [barCount]float64{params.Bass, params.Mid, params.Treble, params.Amplitude},
		Beat: params.Beat,
	}
	if c != nil {
		for _, effect := range c.effects {
			if effect.Enabled() {
				effect.Apply(&frame, params)
			}
		}
	}

	for i := range frame.Bars {
		frame.Bars[i] = clamp01(frame.Bars[i])
		frame.Peaks[i] = clamp01(frame.Peaks[i])
	}
	frame.Flash = clamp01(frame.Flash)
	return frame
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
