package app

import (
	"time"

	"github.com/tphakala/audiopulse/internal/analysis"
	"github.com/tphakala/audiopulse/internal/audiocore/sources"
	"github.com/tphakala/audiopulse/internal/conf"
	"github.com/tphakala/audiopulse/internal/scheduler"
	"github.com/tphakala/audiopulse/internal/visualizer"
)

// SourceConfig maps audio settings onto the capture source factory
func SourceConfig(s *conf.Settings) sources.Config {
	return sources.Config{
		Backend:      s.Audio.Source,
		Device:       s.Audio.Device,
		File:         s.Audio.File,
		Loop:         s.Audio.Loop,
		Waveform:     s.Audio.Waveform,
		Frequency:    s.Audio.Frequency,
		SampleRate:   s.Audio.SampleRate,
		Channels:     s.Audio.Channels,
		BufferFrames: s.Audio.BufferFrames,
		Gain:         s.Audio.Gain,
	}
}

// AnalysisConfig maps analysis and beat settings
func AnalysisConfig(s *conf.Settings) analysis.Config {
	return analysis.Config{
		Analyzer: analysis.AnalyzerConfig{
			WindowSize: s.Analysis.WindowSize,
			Bands: analysis.BandEdges{
				BassLow:    s.Analysis.Bands.BassLow,
				MidLow:     s.Analysis.Bands.MidLow,
				TrebleLow:  s.Analysis.Bands.TrebleLow,
				TrebleHigh: s.Analysis.Bands.TrebleHigh,
			},
			ReferenceDecay: s.Analysis.ReferenceDecay,
			ReferenceFloor: s.Analysis.ReferenceFloor,
		},
		Beat: analysis.BeatConfig{
			Sensitivity:   s.Beat.Sensitivity,
			Cooldown:      time.Duration(s.Beat.CooldownMs) * time.Millisecond,
			MinimumEnergy: s.Beat.MinimumEnergy,
			HistorySize:   s.Beat.History,
		},
		Smoothing: s.Analysis.Smoothing,
	}
}

// SchedulerConfig maps pipeline pacing settings
func SchedulerConfig(s *conf.Settings) scheduler.Config {
	return scheduler.Config{
		TargetFPS:         s.Pipeline.TargetFPS,
		MaxChunksPerFrame: s.Pipeline.MaxChunksPerFrame,
	}
}

// VisualizerConfig maps visualizer settings and the effect chain
func VisualizerConfig(s *conf.Settings) visualizer.Config {
	effects := make([]visualizer.EffectConfig, 0, len(s.Visualizer.Effects))
	for _, e := range s.Visualizer.Effects {
		effects = append(effects, visualizer.EffectConfig{
			Name:      e.Name,
			Enabled:   e.Enabled,
			Intensity: e.Intensity,
		})
	}
	return visualizer.Config{
		Type:        s.Visualizer.Type,
		Width:       s.Visualizer.Width,
		LogInterval: s.Visualizer.LogInterval,
		Effects:     effects,
	}
}
