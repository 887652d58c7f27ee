package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiopulse/internal/audiocore"
)

// sineChunks generates a continuous sine split into chunks of chunkFrames.
func sineChunks(freq, amplitude float64, sampleRate, channels, chunkFrames int, total time.Duration) []*audiocore.AudioChunk {
	frames := int(total.Seconds() * float64(sampleRate))
	start := time.Unix(0, 0)

	var chunks []*audiocore.AudioChunk
	for offset := 0; offset < frames; offset += chunkFrames {
		n := min(chunkFrames, frames-offset)
		samples := make([]float32, n*channels)
		for i := range n {
			v := float32(amplitude * math.Sin(2*math.Pi*freq*float64(offset+i)/float64(sampleRate)))
			for ch := range channels {
				samples[i*channels+ch] = v
			}
		}
		chunks = append(chunks, &audiocore.AudioChunk{
			Samples:    samples,
			SampleRate: sampleRate,
			Channels:   channels,
			Timestamp:  start.Add(time.Duration(offset) * time.Second / time.Duration(sampleRate)),
		})
	}
	return chunks
}

func constantChunk(value float32, frames int, at time.Time) *audiocore.AudioChunk {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = value
	}
	return &audiocore.AudioChunk{Samples: samples, SampleRate: 44100, Channels: 1, Timestamp: at}
}

func TestSpectralAnalyzer_SilenceIsExactlyZero(t *testing.T) {
	t.Parallel()

	a := NewSpectralAnalyzer(AnalyzerConfig{})
	for range 5 {
		spectrum := a.Analyze(constantChunk(0, 1024, time.Time{}))
		assert.Equal(t, BandEnergies{}, spectrum.Bands)
		assert.Zero(t, spectrum.Amplitude)
	}
}

func TestSpectralAnalyzer_Sine440IsMidBand(t *testing.T) {
	t.Parallel()

	a := NewSpectralAnalyzer(AnalyzerConfig{WindowSize: 2048})

	var spectrum Spectrum
	for _, c := range sineChunks(440, 0.8, 44100, 1, 735, time.Second) {
		spectrum = a.Analyze(c)
	}

	assert.Greater(t, spectrum.Bands.Mid, 0.5)
	assert.Less(t, spectrum.Bands.Bass, 0.05)
	assert.Less(t, spectrum.Bands.Treble, 0.05)
	assert.InDelta(t, 0.8/math.Sqrt2, spectrum.Amplitude, 0.01)
}

func TestSpectralAnalyzer_BandPlacement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		freq float64
		band func(BandEnergies) float64
	}{
		{"bass", 100, func(b BandEnergies) float64 { return b.Bass }},
		{"mid", 1000, func(b BandEnergies) float64 { return b.Mid }},
		{"treble", 8000, func(b BandEnergies) float64 { return b.Treble }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := NewSpectralAnalyzer(AnalyzerConfig{})

			var spectrum Spectrum
			for _, c := range sineChunks(tt.freq, 0.5, 48000, 2, 1024, 250*time.Millisecond) {
				spectrum = a.Analyze(c)
			}

			dominant := tt.band(spectrum.Bands)
			assert.InDelta(t, 1.0, dominant, 1e-9, "the loudest band is normalized to the reference")
			for _, other := range []float64{spectrum.Bands.Bass, spectrum.Bands.Mid, spectrum.Bands.Treble} {
				if other != dominant {
					assert.Less(t, other, 0.1)
				}
			}
		})
	}
}

func TestSpectralAnalyzer_DegenerateInput(t *testing.T) {
	t.Parallel()

	a := NewSpectralAnalyzer(AnalyzerConfig{WindowSize: 256})
	samples := make([]float32, 512)
	for i := range samples {
		switch i % 4 {
		case 0:
			samples[i] = float32(math.NaN())
		case 1:
			samples[i] = float32(math.Inf(1))
		case 2:
			samples[i] = 7
		default:
			samples[i] = -7
		}
	}

	spectrum := a.Analyze(&audiocore.AudioChunk{Samples: samples, SampleRate: 44100, Channels: 1})

	for _, v := range []float64{spectrum.Bands.Bass, spectrum.Bands.Mid, spectrum.Bands.Treble, spectrum.Amplitude} {
		assert.False(t, math.IsNaN(v))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestSpectralAnalyzer_NilAndEmptyChunks(t *testing.T) {
	t.Parallel()

	a := NewSpectralAnalyzer(AnalyzerConfig{})
	assert.Equal(t, Spectrum{}, a.Analyze(nil))
	assert.Equal(t, Spectrum{}, a.Analyze(&audiocore.AudioChunk{SampleRate: 44100, Channels: 1}))
}

func TestSpectralAnalyzer_WindowKeepsOnlyNewestSamples(t *testing.T) {
	t.Parallel()

	a := NewSpectralAnalyzer(AnalyzerConfig{WindowSize: 8})

	a.Analyze(&audiocore.AudioChunk{Samples: []float32{0.1, 0.2, 0.3}, SampleRate: 8000, Channels: 1})
	assert.Equal(t, []float64{0, 0, 0, 0, 0, float64(float32(0.1)), float64(float32(0.2)), float64(float32(0.3))}, a.samples)

	long := make([]float32, 20)
	for i := range long {
		long[i] = float32(i) / 100
	}
	a.Analyze(&audiocore.AudioChunk{Samples: long, SampleRate: 8000, Channels: 1})
	require.Len(t, a.samples, 8)
	assert.InDelta(t, 0.12, a.samples[0], 1e-6)
	assert.InDelta(t, 0.19, a.samples[7], 1e-6)
}

func TestSpectralAnalyzer_ResetsOnFormatChange(t *testing.T) {
	t.Parallel()

	a := NewSpectralAnalyzer(AnalyzerConfig{WindowSize: 4})
	a.Analyze(&audiocore.AudioChunk{Samples: []float32{0.5, 0.5, 0.5, 0.5}, SampleRate: 8000, Channels: 1})
	a.Analyze(&audiocore.AudioChunk{Samples: []float32{0.2, 0.4}, SampleRate: 16000, Channels: 2})

	assert.InDelta(t, 0.0, a.samples[0], 1e-9)
	assert.InDelta(t, 0.3, a.samples[3], 1e-6)
}

func TestMixToMono(t *testing.T) {
	t.Parallel()

	got := mixToMono(nil, []float32{1, 0, -1, -1, 0.5, 0.5}, 2)
	assert.Equal(t, []float64{0.5, -1, 0.5}, got)
}

func BenchmarkSpectralAnalyzer(b *testing.B) {
	a := NewSpectralAnalyzer(AnalyzerConfig{})
	chunks := sineChunks(440, 0.5, 44100, 2, 735, 100*time.Millisecond)

	b.ReportAllocs()
	i := 0
	for b.Loop() {
		a.Analyze(chunks[i%len(chunks)])
		i++
	}
}
