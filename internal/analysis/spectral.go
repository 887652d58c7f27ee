package analysis

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/audiopulse/internal/audiocore"
)

// SpectralAnalyzer reduces audio to bass/mid/treble energies with a Hann
// windowed FFT over the most recent WindowSize mono samples.
//
// The sample window slides across calls: short chunks are accumulated, and the
// window is zero-padded until enough audio has arrived. Only the newest
// WindowSize samples are ever kept, so latency never grows past one window.
type SpectralAnalyzer struct {
	cfg AnalyzerConfig

	samples  []float64 // sliding window, oldest first
	hann     []float64
	windowed []float64
	mono     []float64

	sampleRate int
	channels   int
	reference  float64
}

// NewSpectralAnalyzer creates an analyzer. Zero-valued fields fall back to defaults.
func NewSpectralAnalyzer(cfg AnalyzerConfig) *SpectralAnalyzer {
	if cfg.WindowSize < 2 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Bands == (BandEdges{}) {
		cfg.Bands = DefaultBandEdges()
	}
	if cfg.ReferenceDecay <= 0 || cfg.ReferenceDecay > 1 {
		cfg.ReferenceDecay = DefaultReferenceDecay
	}
	if cfg.ReferenceFloor <= 0 {
		cfg.ReferenceFloor = DefaultReferenceFloor
	}

	return &SpectralAnalyzer{
		cfg:      cfg,
		samples:  make([]float64, cfg.WindowSize),
		hann:     window.Hann(cfg.WindowSize),
		windowed: make([]float64, cfg.WindowSize),
	}
}

// WindowSize returns the FFT window length in samples.
func (a *SpectralAnalyzer) WindowSize() int {
	return a.cfg.WindowSize
}

// Reset clears the sample window and loudness reference.
func (a *SpectralAnalyzer) Reset() {
	clear(a.samples)
	a.reference = 0
	a.sampleRate = 0
	a.channels = 0
}

// Analyze folds chunk into the sliding window and returns the spectrum of the
// updated window. A nil or empty chunk leaves state untouched and yields zeros.
func (a *SpectralAnalyzer) Analyze(chunk *audiocore.AudioChunk) Spectrum {
	if chunk == nil || len(chunk.Samples) == 0 || chunk.SampleRate <= 0 {
		return Spectrum{}
	}

	channels := max(chunk.Channels, 1)
	if chunk.SampleRate != a.sampleRate || channels != a.channels {
		a.Reset()
		a.sampleRate = chunk.SampleRate
		a.channels = channels
	}

	a.mono = mixToMono(a.mono[:0], chunk.Samples, channels)
	amplitude := rms(a.mono)
	a.slide(a.mono)

	raw := a.bandEnergies()
	return Spectrum{
		Bands:     a.normalize(raw),
		Amplitude: clamp01(amplitude),
	}
}

// slide appends fresh samples to the window, discarding the oldest.
func (a *SpectralAnalyzer) slide(fresh []float64) {
	n := len(a.samples)
	if len(fresh) >= n {
		copy(a.samples, fresh[len(fresh)-n:])
		return
	}
	copy(a.samples, a.samples[len(fresh):])
	copy(a.samples[n-len(fresh):], fresh)
}

// bandEnergies computes the raw RMS magnitude of each band.
func (a *SpectralAnalyzer) bandEnergies() [3]float64 {
	n := len(a.samples)
	for i, s := range a.samples {
		a.windowed[i] = s * a.hann[i]
	}

	spectrum := fft.FFTReal(a.windowed)

	// A full-scale sine peaks at N/4 after the Hann window
	scale := 4.0 / float64(n)
	binHz := float64(a.sampleRate) / float64(n)
	edges := a.cfg.Bands

	var sumSq [3]float64
	var count [3]int
	for k := 1; k <= n/2; k++ {
		band := bandIndex(float64(k)*binHz, edges)
		if band < 0 {
			continue
		}
		c := spectrum[k]
		mag := math.Hypot(real(c), imag(c)) * scale
		sumSq[band] += mag * mag
		count[band]++
	}

	var out [3]float64
	for i := range out {
		if count[i] > 0 {
			out[i] = math.Sqrt(sumSq[i] / float64(count[i]))
		}
	}
	return out
}

// normalize scales raw band energies against the rolling loudness reference.
func (a *SpectralAnalyzer) normalize(raw [3]float64) BandEnergies {
	peak := floats.Max(raw[:])
	a.reference = math.Max(peak, a.reference*a.cfg.ReferenceDecay)
	ref := math.Max(a.reference, a.cfg.ReferenceFloor)

	return BandEnergies{
		Bass:   clamp01(raw[0] / ref),
		Mid:    clamp01(raw[1] / ref),
		Treble: clamp01(raw[2] / ref),
	}
}

// bandIndex maps a frequency to 0 (bass), 1 (mid), 2 (treble) or -1.
func bandIndex(hz float64, e BandEdges) int {
	switch {
	case hz < e.BassLow || hz > e.TrebleHigh:
		return -1
	case hz < e.MidLow:
		return 0
	case hz < e.TrebleLow:
		return 1
	default:
		return 2
	}
}

// mixToMono averages interleaved channels into dst, sanitizing each sample.
func mixToMono(dst []float64, samples []float32, channels int) []float64 {
	frames := len(samples) / channels
	for f := range frames {
		var sum float64
		for ch := range channels {
			sum += sanitizeSample(float64(samples[f*channels+ch]))
		}
		dst = append(dst, sum/float64(channels))
	}
	return dst
}

// sanitizeSample replaces non-finite values with silence and clamps to [-1, 1]
func sanitizeSample(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}
