// Package file replays WAV, FLAC, MP3 and Ogg Vorbis files as a capture device,
// paced at real time so the pipeline sees the same cadence as a soundcard.
package file

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/logging"
)

// Config contains configuration for file replay
type Config struct {
	Path         string
	Loop         bool
	BufferFrames int
	Gain         float64
}

// Option configures a Source
type Option func(*Source)

// WithClock replaces the wall clock used for pacing
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		s.now = now
	}
}

// Source replays an audio file
type Source struct {
	config Config
	now    func() time.Time

	mu       sync.Mutex
	file     *os.File
	reader   pcmReader
	pacer    *audiocore.Pacer
	buf      []float32
	rate     int
	channels int

	running  atomic.Bool
	finished atomic.Bool
	logger   *slog.Logger
}

// New creates a file source. The file is opened by Start.
func New(config Config, opts ...Option) *Source {
	if config.BufferFrames <= 0 {
		config.BufferFrames = audiocore.DefaultBufferFrames
	}
	if config.Gain <= 0 {
		config.Gain = 1.0
	}

	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}

	s := &Source{
		config: config,
		now:    time.Now,
		logger: logger.With("component", "file_source", "path", config.Path),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the file and begins paced replay
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return audiocore.ErrDeviceAlreadyActive
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.open(); err != nil {
		return err
	}

	s.rate = s.reader.SampleRate()
	s.channels = s.reader.Channels()
	if s.rate <= 0 || s.channels <= 0 {
		s.closeFile()
		return errors.New(nil).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("resource", "audio_format").
			Context("sample_rate", s.rate).
			Context("channels", s.channels).
			Context("error", "file reports an invalid stream format").
			Build()
	}

	s.buf = make([]float32, s.config.BufferFrames*s.channels)
	s.pacer = audiocore.NewPacer(s.rate, s.now)
	s.pacer.Begin()
	s.finished.Store(false)
	s.running.Store(true)

	s.logger.Info("file replay started",
		"sample_rate", s.rate,
		"channels", s.channels,
		"loop", s.config.Loop)
	return nil
}

func (s *Source) open() error {
	f, err := os.Open(s.config.Path)
	if err != nil {
		category := errors.CategoryFileIO
		if os.IsNotExist(err) {
			category = errors.CategoryNotFound
		}
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(category).
			Context("resource", "audio_file").
			Context("path", s.config.Path).
			Build()
	}

	reader, err := openReader(f)
	if err != nil {
		_ = f.Close()
		return err
	}

	s.file = f
	s.reader = reader
	return nil
}

// rewind reopens the file from the start. Decoders cannot seek in general.
func (s *Source) rewind() error {
	s.closeFile()
	return s.open()
}

func (s *Source) closeFile() {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	s.reader = nil
}

// Stop ends replay and closes the file
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Swap(false) && s.file == nil {
		return nil
	}
	s.closeFile()
	s.logger.Info("file replay stopped", "finished", s.finished.Load())
	return nil
}

// IsActive reports whether replay is running and has not reached the end
func (s *Source) IsActive() bool {
	return s.running.Load() && !s.finished.Load()
}

// Finished reports whether a non-looping replay reached the end of the file
func (s *Source) Finished() bool {
	return s.finished.Load()
}

// Config returns the stream format. Rate and channels are known after Start.
func (s *Source) Config() audiocore.DeviceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audiocore.DeviceConfig{
		SampleRate:   s.rate,
		Channels:     s.channels,
		BufferFrames: s.config.BufferFrames,
	}
}

// TryRead returns the next buffer of audio once its playback time has come
func (s *Source) TryRead() (*audiocore.AudioChunk, bool) {
	if !s.running.Load() || s.finished.Load() {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reader == nil || s.pacer.Due() < s.config.BufferFrames {
		return nil, false
	}

	got := s.fill()
	got -= got % s.channels
	if got == 0 {
		return nil, false
	}

	samples := make([]float32, got)
	copy(samples, s.buf[:got])
	audiocore.ApplyGain(samples, float32(s.config.Gain))

	chunk := &audiocore.AudioChunk{
		Samples:    samples,
		SampleRate: s.rate,
		Channels:   s.channels,
		Timestamp:  s.pacer.Timestamp(),
	}
	s.pacer.Advance(got / s.channels)
	return chunk, true
}

// fill reads one buffer. When looping it rewinds at end of file as long as
// the previous pass produced samples, so an empty file cannot spin.
func (s *Source) fill() int {
	want := len(s.buf)
	got := 0
	rewoundAt := -1

	for got < want {
		n, err := s.reader.Read(s.buf[got:want])
		got += n
		if err == nil {
			continue
		}

		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			s.logger.Error("file decode failed", "error", err)
			s.finished.Store(true)
			return got
		}
		if !s.config.Loop || rewoundAt == got {
			s.finished.Store(true)
			return got
		}
		if err := s.rewind(); err != nil {
			s.logger.Error("file rewind failed", "error", err)
			s.finished.Store(true)
			return got
		}
		rewoundAt = got
		s.logger.Debug("file replay looped")
	}
	return got
}
