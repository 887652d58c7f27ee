// Package app wires capture, analysis, visualization and telemetry into one
// running pipeline.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audiopulse/internal/analysis"
	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/audiocore/sources"
	"github.com/tphakala/audiopulse/internal/conf"
	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/logging"
	"github.com/tphakala/audiopulse/internal/observability"
	"github.com/tphakala/audiopulse/internal/scheduler"
	"github.com/tphakala/audiopulse/internal/visualizer"
)

const (
	// ComponentApp identifies app errors
	ComponentApp = "app"

	// ServiceName tags lifecycle log records
	ServiceName = "audiopulse"

	reporterFlushTimeout = 2 * time.Second
)

// DeviceFactory creates the capture device for a source configuration
type DeviceFactory func(cfg sources.Config) (audiocore.CaptureDevice, error)

// App runs one pipeline. It can be run once.
type App struct {
	settings  *conf.Settings
	out       io.Writer
	logger    *slog.Logger
	runID     string
	metrics   *observability.Metrics
	newDevice DeviceFactory
	schedOpts []scheduler.Option
	transport sentry.Transport
	started   atomic.Bool
}

// Option configures an App
type Option func(*App)

// WithOutput sets where meters draw, stdout by default
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.out = w
	}
}

// WithLogger sets the lifecycle logger
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithDeviceFactory replaces sources.Create
func WithDeviceFactory(f DeviceFactory) Option {
	return func(a *App) {
		a.newDevice = f
	}
}

// WithSchedulerOptions passes extra options to the frame scheduler
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(a *App) {
		a.schedOpts = append(a.schedOpts, opts...)
	}
}

// WithErrorTransport sets the transport used when error reporting is enabled
func WithErrorTransport(t sentry.Transport) Option {
	return func(a *App) {
		a.transport = t
	}
}

// New creates an App for validated settings
func New(settings *conf.Settings, opts ...Option) (*App, error) {
	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}

	logger := logging.ForService(ServiceName)
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		settings:  settings,
		out:       os.Stdout,
		logger:    logger,
		runID:     uuid.New().String()[:8],
		metrics:   metrics,
		newDevice: sources.Create,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("run_id", a.runID)
	return a, nil
}

// RunID returns the short identifier attached to this run's log records
func (a *App) RunID() string {
	return a.runID
}

// Metrics returns the run's metrics
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Run builds the pipeline and runs it until ctx is cancelled. Errors opening
// the capture device are returned before anything starts. Once running, the
// device is stopped and visualizers closed on every exit path.
func (a *App) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return errors.New(nil).
			Component(ComponentApp).
			Category(errors.CategoryState).
			Context("error", "app already started").
			Build()
	}

	s := a.settings

	stream, err := analysis.New(AnalysisConfig(s))
	if err != nil {
		return fmt.Errorf("error creating analysis stream: %w", err)
	}

	if s.Telemetry.Sentry.Enabled {
		reporter, err := observability.NewErrorReporter(observability.ReporterOptions{
			DSN:         s.Telemetry.Sentry.DSN,
			Environment: s.Telemetry.Sentry.Environment,
			Transport:   a.transport,
		})
		if err != nil {
			return fmt.Errorf("error creating error reporter: %w", err)
		}
		errors.AddErrorHook(reporter.Hook())
		defer func() {
			if !reporter.Flush(reporterFlushTimeout) {
				a.logger.Warn("error reports not delivered before timeout")
			}
			reporter.Close()
		}()
		a.logger.Info("error reporting enabled", "environment", s.Telemetry.Sentry.Environment)
	}

	// Failures after the visualizer is created must close it
	ring := audiocore.NewSampleRingBuffer(s.Pipeline.RingCapacity)
	if err := a.metrics.Pipeline.ObserveRing(ring.Len, ring.Capacity()); err != nil {
		return fmt.Errorf("error registering ring metrics: %w", err)
	}
	errors.AddErrorHook(a.metrics.ErrorHook())

	vis, err := visualizer.New(VisualizerConfig(s), a.out, a.logger)
	if err != nil {
		return fmt.Errorf("error creating visualizer: %w", err)
	}

	device, err := a.newDevice(SourceConfig(s))
	if err != nil {
		closeVisualizer(vis)
		return fmt.Errorf("error creating %s capture source: %w", s.Audio.Source, err)
	}
	if err := device.Start(ctx); err != nil {
		closeVisualizer(vis)
		return fmt.Errorf("error starting %s capture source: %w", s.Audio.Source, err)
	}

	devCfg := device.Config()
	a.logger.Info("pipeline starting",
		"source", s.Audio.Source,
		"sample_rate", devCfg.SampleRate,
		"channels", devCfg.Channels,
		"buffer_frames", devCfg.BufferFrames,
		"target_fps", s.Pipeline.TargetFPS,
		"visualizer", s.Visualizer.Type)

	g, gctx := errgroup.WithContext(ctx)

	pump := audiocore.NewPump(device, ring, audiocore.WithPumpRecorder(a.metrics.Pipeline))
	pumpCtx, stopPump := context.WithCancel(gctx)
	defer stopPump()
	pumpDone := make(chan struct{})
	g.Go(func() error {
		defer close(pumpDone)
		return pump.Run(pumpCtx)
	})

	sched := scheduler.New(ring, stream, vis, SchedulerConfig(s),
		append([]scheduler.Option{scheduler.WithRecorder(a.metrics.Pipeline)}, a.schedOpts...)...)

	// Cleanups run in reverse: the device stops before visualizers close
	if c, ok := vis.(io.Closer); ok {
		sched.OnShutdown("visualizer", c.Close)
	}
	sched.OnShutdown("capture_device", func() error {
		// The pump must not read from a stopping device
		stopPump()
		<-pumpDone
		return device.Stop()
	})

	if s.Telemetry.Enabled {
		endpoint := observability.NewEndpoint(s.Telemetry.Listen, a.metrics)
		g.Go(func() error {
			return endpoint.Run(gctx)
		})
	}

	g.Go(func() error {
		return sched.Run(gctx)
	})

	err = g.Wait()
	a.logger.Info("pipeline stopped",
		"frames", sched.Frames(),
		"overruns", sched.Overruns(),
		"chunks_pushed", ring.Pushed(),
		"chunks_dropped", ring.Dropped())
	return err
}

func closeVisualizer(vis visualizer.Visualizer) {
	if c, ok := vis.(io.Closer); ok {
		_ = c.Close()
	}
}
