package analysis

import (
	"math"
	"time"

	"github.com/tphakala/audiopulse/internal/audiocore"
)

// ParameterStream combines spectral analysis, beat detection and smoothing
// into one AudioParameters value per frame.
type ParameterStream struct {
	analyzer *SpectralAnalyzer
	detector *BeatDetector
	alpha    float64
	now      func() time.Time

	smoothed AudioParameters
	last     Spectrum
}

// NewParameterStream wires an analyzer and detector with smoothing factor
// alpha, the weight given to each new value.
func NewParameterStream(analyzer *SpectralAnalyzer, detector *BeatDetector, alpha float64) *ParameterStream {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSmoothing
	}
	return &ParameterStream{
		analyzer: analyzer,
		detector: detector,
		alpha:    alpha,
		now:      time.Now,
	}
}

// New builds a ParameterStream from cfg after validating it.
func New(cfg Config) (*ParameterStream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewParameterStream(
		NewSpectralAnalyzer(cfg.Analyzer),
		NewBeatDetector(cfg.Beat),
		cfg.Smoothing,
	), nil
}

// Next returns the parameters for one frame. A nil chunk means no audio
// arrived this frame: smoothed values decay toward zero and beat is false.
func (s *ParameterStream) Next(chunk *audiocore.AudioChunk) AudioParameters {
	if chunk == nil {
		s.last = Spectrum{}
		s.smoothed.Bass = s.smooth(s.smoothed.Bass, 0)
		s.smoothed.Mid = s.smooth(s.smoothed.Mid, 0)
		s.smoothed.Treble = s.smooth(s.smoothed.Treble, 0)
		s.smoothed.Amplitude = s.smooth(s.smoothed.Amplitude, 0)
		s.smoothed.Beat = false
		return s.smoothed
	}

	spectrum := s.analyzer.Analyze(chunk)
	s.last = spectrum

	at := chunk.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	beat := s.detector.Detect(spectrum.Amplitude, at)

	b := spectrum.Bands
	overall := math.Sqrt((b.Bass*b.Bass + b.Mid*b.Mid + b.Treble*b.Treble) / 3)

	s.smoothed.Bass = s.smooth(s.smoothed.Bass, b.Bass)
	s.smoothed.Mid = s.smooth(s.smoothed.Mid, b.Mid)
	s.smoothed.Treble = s.smooth(s.smoothed.Treble, b.Treble)
	s.smoothed.Amplitude = s.smooth(s.smoothed.Amplitude, overall)
	s.smoothed.Beat = beat

	return s.smoothed
}

// LastSpectrum returns the unsmoothed spectrum of the most recent frame.
func (s *ParameterStream) LastSpectrum() Spectrum {
	return s.last
}

// Reset clears analyzer, detector and smoothing state.
func (s *ParameterStream) Reset() {
	s.analyzer.Reset()
	s.detector.Reset()
	s.smoothed = AudioParameters{}
	s.last = Spectrum{}
}

func (s *ParameterStream) smooth(prev, target float64) float64 {
	return clamp01(prev + s.alpha*(target-prev))
}
