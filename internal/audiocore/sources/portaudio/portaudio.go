// Package portaudio provides a PortAudio-backed soundcard capture device
package portaudio

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/logging"
)

// DefaultStagingChunks is how many callback buffers are held for the pump
const DefaultStagingChunks = 64

// Config contains configuration for the PortAudio capture device
type Config struct {
	DeviceName    string
	SampleRate    int
	Channels      int
	BufferFrames  int
	Gain          float64
	StagingChunks int
}

// Device captures from a soundcard through PortAudio. The stream callback
// hands each buffer to a lock-free chunk ring; TryRead pops from it.
type Device struct {
	config Config

	mu     sync.Mutex
	stream *portaudio.Stream

	staging *audiocore.SampleRingBuffer
	rate    int

	running atomic.Bool
	logger  *slog.Logger
}

// NewDevice creates a capture device. The stream is opened by Start.
func NewDevice(config Config) *Device {
	if config.SampleRate <= 0 {
		config.SampleRate = audiocore.DefaultSampleRate
	}
	if config.Channels <= 0 {
		config.Channels = audiocore.DefaultChannels
	}
	if config.BufferFrames <= 0 {
		config.BufferFrames = audiocore.DefaultBufferFrames
	}
	if config.Gain <= 0 {
		config.Gain = 1.0
	}
	if config.StagingChunks <= 0 {
		config.StagingChunks = DefaultStagingChunks
	}

	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}

	return &Device{
		config:  config,
		staging: audiocore.NewSampleRingBuffer(config.StagingChunks),
		rate:    config.SampleRate,
		logger:  logger.With("component", "portaudio", "device_name", config.DeviceName),
	}
}

// Start opens and starts the capture stream
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return audiocore.ErrDeviceAlreadyActive
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return sourceError(err, "initialize")
	}

	devices, err := portaudio.Devices()
	if err != nil {
		_ = portaudio.Terminate()
		return sourceError(err, "enumerate_devices")
	}

	defaultName := ""
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	dev, err := selectInput(devices, defaultName, d.config.DeviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = d.config.Channels
	params.SampleRate = float64(d.config.SampleRate)
	params.FramesPerBuffer = d.config.BufferFrames

	stream, err := portaudio.OpenStream(params, d.onAudio)
	if err != nil {
		_ = portaudio.Terminate()
		return sourceError(err, "open_stream")
	}

	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		d.rate = int(info.SampleRate)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return sourceError(err, "start_stream")
	}

	d.stream = stream
	d.running.Store(true)

	d.logger.Info("capture started",
		"device", dev.Name,
		"sample_rate", d.rate,
		"channels", d.config.Channels)
	return nil
}

// Stop halts capture and terminates PortAudio
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return nil
	}
	d.running.Store(false)

	var errs []error
	if err := d.stream.Stop(); err != nil {
		errs = append(errs, sourceError(err, "stop_stream"))
	}
	if err := d.stream.Close(); err != nil {
		errs = append(errs, sourceError(err, "close_stream"))
	}
	d.stream = nil
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, sourceError(err, "terminate"))
	}

	if n := d.staging.Dropped(); n > 0 {
		d.logger.Warn("capture staging overflowed", "chunks_dropped", n)
	}
	d.logger.Info("capture stopped")
	return errors.Join(errs...)
}

// IsActive returns true if the device is currently capturing
func (d *Device) IsActive() bool {
	return d.running.Load()
}

// Config returns the negotiated stream configuration
func (d *Device) Config() audiocore.DeviceConfig {
	return audiocore.DeviceConfig{
		SampleRate:   d.rate,
		Channels:     d.config.Channels,
		BufferFrames: d.config.BufferFrames,
	}
}

// Dropped returns how many callback buffers were evicted before being read
func (d *Device) Dropped() uint64 {
	return d.staging.Dropped()
}

// TryRead returns the oldest staged buffer
func (d *Device) TryRead() (*audiocore.AudioChunk, bool) {
	return d.staging.TryPop()
}

// onAudio is the PortAudio stream callback. The input slice is reused by
// PortAudio, so it is copied before staging.
func (d *Device) onAudio(in []float32) {
	if len(in) == 0 {
		return
	}
	samples := make([]float32, len(in))
	copy(samples, in)
	audiocore.ApplyGain(samples, float32(d.config.Gain))

	chunk := &audiocore.AudioChunk{
		Samples:    samples,
		SampleRate: d.rate,
		Channels:   d.config.Channels,
	}
	chunk.Timestamp = time.Now().Add(-chunk.Duration())
	d.staging.Push(chunk)
}

// EnumerateDevices lists PortAudio devices with input channels
func EnumerateDevices() ([]audiocore.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, sourceError(err, "initialize")
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, sourceError(err, "enumerate_devices")
	}

	defaultName := ""
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	infos := make([]audiocore.DeviceInfo, 0, len(devices))
	for _, dev := range inputs(devices) {
		infos = append(infos, audiocore.DeviceInfo{
			ID:        strconv.Itoa(dev.Index),
			Name:      dev.Name,
			IsDefault: dev.Name == defaultName,
		})
	}
	return infos, nil
}

func inputs(devices []*portaudio.DeviceInfo) []*portaudio.DeviceInfo {
	out := make([]*portaudio.DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		if dev != nil && dev.MaxInputChannels > 0 {
			out = append(out, dev)
		}
	}
	return out
}

// selectInput picks an input device by name, index or partial name
func selectInput(devices []*portaudio.DeviceInfo, defaultName, name string) (*portaudio.DeviceInfo, error) {
	candidates := inputs(devices)

	if name == "" || name == "default" {
		for _, dev := range candidates {
			if dev.Name == defaultName {
				return dev, nil
			}
		}
		if len(candidates) > 0 {
			return candidates[0], nil
		}
	}

	for _, dev := range candidates {
		if dev.Name == name || strconv.Itoa(dev.Index) == name {
			return dev, nil
		}
	}
	for _, dev := range candidates {
		if name != "" && strings.Contains(dev.Name, name) {
			return dev, nil
		}
	}

	return nil, errors.New(nil).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryNotFound).
		Context("resource", "capture_device").
		Context("device_name", name).
		Context("available_devices", len(candidates)).
		Context("error", "no matching audio device found").
		Build()
}

func sourceError(err error, operation string) error {
	return errors.New(err).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryAudioSource).
		Context("resource", "capture_device").
		Context("backend", "portaudio").
		Context("operation", operation).
		Build()
}
