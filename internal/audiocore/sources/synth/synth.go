// Package synth generates test signals as a capture device. It is used for
// demos without a soundcard and to drive the pipeline deterministically in tests.
package synth

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
)

// Waveform names
const (
	WaveSine    = "sine"
	WaveSilence = "silence"
	WavePulse   = "pulse"
)

// Generator defaults
const (
	DefaultFrequency     = 440.0
	DefaultAmplitude     = 0.5
	DefaultPulseInterval = 500 * time.Millisecond
	DefaultPulseLength   = 50 * time.Millisecond
)

// Config contains configuration for the signal generator
type Config struct {
	Waveform     string
	Frequency    float64
	Amplitude    float64
	SampleRate   int
	Channels     int
	BufferFrames int

	// PulseInterval and PulseLength shape the pulse waveform: a sine burst
	// of PulseLength every PulseInterval, silence in between.
	PulseInterval time.Duration
	PulseLength   time.Duration
}

// Option configures a Source
type Option func(*Source)

// WithClock replaces the wall clock used for pacing
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		s.now = now
	}
}

// Source is a paced signal generator
type Source struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	pacer   *audiocore.Pacer
	frame   int64
	running atomic.Bool
}

// New creates a generator. Unknown waveforms are rejected by Start.
func New(config Config, opts ...Option) *Source {
	if config.Waveform == "" {
		config.Waveform = WaveSine
	}
	if config.Frequency <= 0 {
		config.Frequency = DefaultFrequency
	}
	if config.Amplitude <= 0 {
		config.Amplitude = DefaultAmplitude
	}
	if config.SampleRate <= 0 {
		config.SampleRate = audiocore.DefaultSampleRate
	}
	if config.Channels <= 0 {
		config.Channels = audiocore.DefaultChannels
	}
	if config.BufferFrames <= 0 {
		config.BufferFrames = audiocore.DefaultBufferFrames
	}
	if config.PulseInterval <= 0 {
		config.PulseInterval = DefaultPulseInterval
	}
	if config.PulseLength <= 0 {
		config.PulseLength = DefaultPulseLength
	}

	s := &Source{config: config, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins generation
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return audiocore.ErrDeviceAlreadyActive
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch s.config.Waveform {
	case WaveSine, WaveSilence, WavePulse:
	default:
		return errors.New(nil).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("resource", "audio_format").
			Context("waveform", s.config.Waveform).
			Context("error", "unknown synth waveform").
			Build()
	}

	s.pacer = audiocore.NewPacer(s.config.SampleRate, s.now)
	s.pacer.Begin()
	s.frame = 0
	s.running.Store(true)
	return nil
}

// Stop ends generation
func (s *Source) Stop() error {
	s.running.Store(false)
	return nil
}

// IsActive reports whether the generator is running
func (s *Source) IsActive() bool {
	return s.running.Load()
}

// Config returns the generated stream format
func (s *Source) Config() audiocore.DeviceConfig {
	return audiocore.DeviceConfig{
		SampleRate:   s.config.SampleRate,
		Channels:     s.config.Channels,
		BufferFrames: s.config.BufferFrames,
	}
}

// TryRead returns the next buffer once its playback time has come
func (s *Source) TryRead() (*audiocore.AudioChunk, bool) {
	if !s.running.Load() {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frames := s.config.BufferFrames
	if s.pacer.Due() < frames {
		return nil, false
	}

	samples := make([]float32, frames*s.config.Channels)
	for i := range frames {
		v := s.sample(s.frame + int64(i))
		for c := range s.config.Channels {
			samples[i*s.config.Channels+c] = v
		}
	}

	chunk := &audiocore.AudioChunk{
		Samples:    samples,
		SampleRate: s.config.SampleRate,
		Channels:   s.config.Channels,
		Timestamp:  s.pacer.Timestamp(),
	}
	s.pacer.Advance(frames)
	s.frame += int64(frames)
	return chunk, true
}

// sample returns the value of frame n
func (s *Source) sample(n int64) float32 {
	rate := float64(s.config.SampleRate)
	tone := s.config.Amplitude * math.Sin(2*math.Pi*s.config.Frequency*float64(n)/rate)

	switch s.config.Waveform {
	case WaveSilence:
		return 0
	case WavePulse:
		period := int64(s.config.PulseInterval.Seconds() * rate)
		width := int64(s.config.PulseLength.Seconds() * rate)
		if period > 0 && n%period >= width {
			return 0
		}
		return float32(tone)
	default:
		return float32(tone)
	}
}
