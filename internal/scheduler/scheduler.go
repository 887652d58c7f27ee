// Package scheduler drives the fixed-cadence render loop: once per frame it
// drains the ring buffer, computes AudioParameters and hands them to the
// visualizer, then sleeps for the rest of the frame.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/audiopulse/internal/analysis"
	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/logging"
)

// ComponentScheduler identifies scheduler errors
const ComponentScheduler = "scheduler"

const (
	DefaultTargetFPS         = 60
	DefaultMaxChunksPerFrame = 256

	renderErrorLogInterval = 5 * time.Second
)

// Visualizer consumes one AudioParameters value per frame.
type Visualizer interface {
	Update(params analysis.AudioParameters)
}

// Renderer is implemented by visualizers that draw after each update.
type Renderer interface {
	Render() error
}

// Recorder receives per-frame timing. Implementations must not block.
type Recorder interface {
	RecordFrame(duration time.Duration, overrun bool)
	RecordAnalysis(duration time.Duration)
	RecordBeat()
}

// Config holds scheduler settings.
type Config struct {
	TargetFPS         int
	MaxChunksPerFrame int
}

// FrameInterval returns the target frame duration.
func (c Config) FrameInterval() time.Duration {
	fps := c.TargetFPS
	if fps <= 0 {
		fps = DefaultTargetFPS
	}
	return time.Second / time.Duration(fps)
}

type cleanupFunc struct {
	name string
	fn   func() error
}

// FrameScheduler owns the consumer side of the ring buffer and every analysis
// component. It must be run from a single goroutine.
type FrameScheduler struct {
	ring       *audiocore.SampleRingBuffer
	stream     *analysis.ParameterStream
	visualizer Visualizer
	recorder   Recorder

	interval  time.Duration
	maxChunks int
	pending   []*audiocore.AudioChunk

	state  atomic.Int32
	frames atomic.Uint64
	overs  atomic.Uint64

	cleanupMu sync.Mutex
	cleanups  []cleanupFunc

	logger        *slog.Logger
	renderLimiter *rate.Limiter

	// Injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// Option configures a FrameScheduler.
type Option func(*FrameScheduler)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *FrameScheduler) {
		s.recorder = r
	}
}

// WithClock replaces the wall clock and sleep function.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(s *FrameScheduler) {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New creates a scheduler reading from ring and feeding visualizer.
func New(ring *audiocore.SampleRingBuffer, stream *analysis.ParameterStream, visualizer Visualizer, cfg Config, opts ...Option) *FrameScheduler {
	logger := logging.ForService("scheduler")
	if logger == nil {
		logger = slog.Default()
	}

	maxChunks := cfg.MaxChunksPerFrame
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunksPerFrame
	}

	s := &FrameScheduler{
		ring:          ring,
		stream:        stream,
		visualizer:    visualizer,
		interval:      cfg.FrameInterval(),
		maxChunks:     maxChunks,
		pending:       make([]*audiocore.AudioChunk, 0, maxChunks),
		logger:        logger.With("component", "frame_scheduler"),
		renderLimiter: rate.NewLimiter(rate.Every(renderErrorLogInterval), 1),
		now:           time.Now,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnShutdown registers fn to run when Run exits. Cleanups run in reverse
// registration order; their errors are logged, never returned.
func (s *FrameScheduler) OnShutdown(name string, fn func() error) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups = append(s.cleanups, cleanupFunc{name: name, fn: fn})
}

// State returns the current lifecycle state.
func (s *FrameScheduler) State() State {
	return State(s.state.Load())
}

// Frames returns the number of completed frames.
func (s *FrameScheduler) Frames() uint64 {
	return s.frames.Load()
}

// Overruns returns the number of frames that took longer than the frame interval.
func (s *FrameScheduler) Overruns() uint64 {
	return s.overs.Load()
}

// Run executes frames until ctx is cancelled. Cancellation is checked at the
// top of each frame and during the end-of-frame sleep, never mid-frame.
// Run returns nil on cancellation; a scheduler can only be run once.
func (s *FrameScheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.New(nil).
			Component(ComponentScheduler).
			Category(errors.CategoryState).
			Context("resource", "frame_scheduler").
			Context("error", "scheduler already started").
			Context("state", s.State().String()).
			Build()
	}
	defer s.shutdown()

	s.logger.Info("frame scheduler started",
		"target_fps", int(time.Second/s.interval),
		"frame_interval", s.interval)

	for {
		if ctx.Err() != nil {
			return nil
		}

		start := s.now()
		s.frame()
		elapsed := s.now().Sub(start)

		overrun := elapsed >= s.interval
		s.frames.Add(1)
		if s.recorder != nil {
			s.recorder.RecordFrame(elapsed, overrun)
		}

		if overrun {
			// Dropped-frame policy: start the next frame now, no catch-up
			s.overs.Add(1)
			continue
		}

		if !s.sleep(ctx, s.interval-elapsed) {
			return nil
		}
	}
}

// frame runs one drain, analyze and dispatch pass.
func (s *FrameScheduler) frame() {
	s.pending = s.pending[:0]
	for len(s.pending) < s.maxChunks {
		chunk, ok := s.ring.TryPop()
		if !ok {
			break
		}
		s.pending = append(s.pending, chunk)
	}

	analysisStart := s.now()
	params := s.stream.Next(audiocore.Merge(s.pending))
	if s.recorder != nil {
		s.recorder.RecordAnalysis(s.now().Sub(analysisStart))
		if params.Beat {
			s.recorder.RecordBeat()
		}
	}

	// Drop chunk references so they can be collected
	clear(s.pending)

	s.visualizer.Update(params)
	if r, ok := s.visualizer.(Renderer); ok {
		if err := r.Render(); err != nil && s.renderLimiter.Allow() {
			s.logger.Warn("render failed", "error", err)
		}
	}
}

// shutdown runs registered cleanups on every exit path of Run.
func (s *FrameScheduler) shutdown() {
	s.state.Store(int32(StateShuttingDown))

	s.cleanupMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		if err := runCleanup(c.fn); err != nil {
			s.logger.Error("cleanup failed", "cleanup", c.name, "error", err)
		}
	}

	s.state.Store(int32(StateStopped))
	s.logger.Info("frame scheduler stopped",
		"frames", s.frames.Load(),
		"overruns", s.overs.Load(),
		"chunks_dropped", s.ring.Dropped())
}

// runCleanup converts a panicking cleanup into an error so later cleanups still run
func runCleanup(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("cleanup panicked: %v", r).
				Component(ComponentScheduler).
				Category(errors.CategorySystem).
				Build()
		}
	}()
	return fn()
}

// sleepContext sleeps for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
