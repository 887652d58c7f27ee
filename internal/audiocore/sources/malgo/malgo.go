// Package malgo provides a miniaudio-backed soundcard capture device
package malgo

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/logging"
)

// DefaultStagingSeconds is how much audio the callback staging buffer holds
const DefaultStagingSeconds = 1.0

// Config contains configuration for the malgo capture device
type Config struct {
	DeviceName     string
	SampleRate     int
	Channels       int
	BufferFrames   int
	Gain           float64
	StagingSeconds float64
}

// Device captures from a soundcard. The miniaudio callback copies raw bytes
// into a staging ring buffer using a try-lock write, so the callback never
// waits on the reader; TryRead decodes whatever whole frames are staged.
//
// Occupancy is tracked in staged rather than asked of the ring buffer, whose
// size queries take a blocking lock. The callback only increments it after a
// write and TryRead only decrements it after a read, so each side sees a
// conservative view: the callback never attempts a write that could be
// truncated, and TryRead never asks for bytes that are not yet staged.
type Device struct {
	config Config

	// Malgo specific
	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	staging       *ringbuffer.RingBuffer
	stagingSize   int
	staged        atomic.Int64
	readBuf       []byte
	format        malgo.FormatType
	bytesPerFrame int
	actualRate    int

	running   atomic.Bool
	overflows atomic.Uint64
	logger    *slog.Logger
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
	if config.StagingSeconds <= 0 {
		config.StagingSeconds = DefaultStagingSeconds
	}

	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}

	return &Device{
		config: config,
		logger: logger.With("component", "malgo", "device_name", config.DeviceName),
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

	malgoCtx, err := initContext()
	if err != nil {
		return err
	}

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("resource", "capture_device").
			Context("operation", "enumerate_devices").
			Build()
	}

	index, err := selectDevice(toCandidates(infos), d.config.DeviceName)
	if err != nil {
		_ = malgoCtx.Uninit()
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(d.config.Channels)
	deviceConfig.Capture.DeviceID = infos[index].ID.Pointer()
	deviceConfig.SampleRate = uint32(d.config.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(d.config.BufferFrames)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: d.onAudioData,
		Stop: d.onDeviceStop,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("resource", "capture_device").
			Context("device_name", infos[index].Name()).
			Context("operation", "init_device").
			Build()
	}

	// Size staging from the negotiated format
	if err := d.prepareStaging(device.CaptureFormat(), int(device.SampleRate())); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return err
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = malgoCtx.Uninit()
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("resource", "capture_device").
			Context("operation", "start_device").
			Build()
	}

	d.ctx = malgoCtx
	d.device = device
	d.running.Store(true)

	d.logger.Info("capture started",
		"device", infos[index].Name(),
		"backend", runtime.GOOS,
		"sample_rate", d.actualRate,
		"channels", d.config.Channels)

	return nil
}

// prepareStaging allocates the callback staging buffer for format and rate
func (d *Device) prepareStaging(format malgo.FormatType, rate int) error {
	bytesPerSample, name := GetFormatInfo(format)
	if bytesPerSample == 0 {
		return errors.New(nil).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryValidation).
			Context("resource", "audio_format").
			Context("format", name).
			Context("error", "unsupported capture format").
			Build()
	}
	if rate <= 0 {
		rate = d.config.SampleRate
	}

	d.format = format
	d.actualRate = rate
	d.bytesPerFrame = bytesPerSample * d.config.Channels

	stagingFrames := int(float64(rate) * d.config.StagingSeconds)
	d.stagingSize = stagingFrames * d.bytesPerFrame
	d.staging = ringbuffer.New(d.stagingSize)
	d.staged.Store(0)
	d.readBuf = make([]byte, CalculateBufferSize(format, d.config.Channels, d.config.BufferFrames))
	return nil
}

// Stop halts audio capture and releases the malgo context
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	d.running.Store(false)

	var stopErr error
	if err := d.device.Stop(); err != nil {
		stopErr = errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("resource", "capture_device").
			Context("operation", "stop_device").
			Build()
	}
	d.device.Uninit()
	d.device = nil

	if d.ctx != nil {
		_ = d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
	}

	if n := d.overflows.Load(); n > 0 {
		d.logger.Warn("capture staging overflowed", "callbacks_dropped", n)
	}
	d.logger.Info("capture stopped")

	return stopErr
}

// IsActive returns true if the device is currently capturing
func (d *Device) IsActive() bool {
	return d.running.Load()
}

// Config returns the negotiated stream configuration
func (d *Device) Config() audiocore.DeviceConfig {
	rate := d.actualRate
	if rate == 0 {
		rate = d.config.SampleRate
	}
	return audiocore.DeviceConfig{
		SampleRate:   rate,
		Channels:     d.config.Channels,
		BufferFrames: d.config.BufferFrames,
	}
}

// Overflows returns how many callbacks were dropped because staging was full or busy
func (d *Device) Overflows() uint64 {
	return d.overflows.Load()
}

// TryRead decodes up to BufferFrames of staged audio. It never blocks.
func (d *Device) TryRead() (*audiocore.AudioChunk, bool) {
	if !d.running.Load() || d.staging == nil {
		return nil, false
	}

	avail := min(int(d.staged.Load()), len(d.readBuf))
	avail -= avail % d.bytesPerFrame
	if avail == 0 {
		return nil, false
	}

	n, err := d.staging.TryRead(d.readBuf[:avail])
	if n > 0 {
		d.staged.Add(-int64(n))
	}
	if err != nil || n == 0 {
		return nil, false
	}

	samples, err := DecodeToFloat32(make([]float32, 0, n/(d.bytesPerFrame/d.config.Channels)), d.readBuf[:n], d.format)
	if err != nil {
		return nil, false
	}
	audiocore.ApplyGain(samples, float32(d.config.Gain))

	chunk := &audiocore.AudioChunk{
		Samples:    samples,
		SampleRate: d.actualRate,
		Channels:   d.config.Channels,
	}
	chunk.Timestamp = time.Now().Add(-chunk.Duration())
	return chunk, true
}

// onAudioData is called by malgo on the audio thread. It must never block.
func (d *Device) onAudioData(_, pSamples []byte, _ uint32) {
	if len(pSamples) == 0 {
		return
	}
	// Whole callback or nothing, so staged data stays frame aligned
	if d.stagingSize-int(d.staged.Load()) < len(pSamples) {
		d.overflows.Add(1)
		return
	}
	n, err := d.staging.TryWrite(pSamples)
	if n > 0 {
		d.staged.Add(int64(n))
	}
	if err != nil {
		// ErrAcquireLock: the reader holds the buffer, drop rather than wait
		d.overflows.Add(1)
	}
}

// onDeviceStop is called when the device stops
func (d *Device) onDeviceStop() {
	if d.running.Swap(false) {
		d.logger.Warn("audio device stopped unexpectedly")
	}
}
