package audiocore

import (
	"context"
	"time"
)

// AudioChunk is one delivery unit of interleaved float32 samples.
type AudioChunk struct {
	// Samples holds interleaved samples in [-1, 1], frame by frame
	Samples []float32

	// SampleRate in Hz
	SampleRate int

	// Channels is the number of interleaved channels
	Channels int

	// Timestamp is the capture time of the first frame
	Timestamp time.Time
}

// Frames returns the number of sample frames in the chunk.
func (c *AudioChunk) Frames() int {
	if c == nil || c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playback duration of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// DeviceConfig describes the stream a capture device delivers.
type DeviceConfig struct {
	SampleRate   int
	Channels     int
	BufferFrames int
}

// DeviceInfo identifies a capture device reported by a backend.
type DeviceInfo struct {
	ID        string
	Name      string
	IsDefault bool
}

// CaptureDevice is an audio input consumed by the pipeline.
// TryRead is only ever called from the producer context and must not block.
type CaptureDevice interface {
	// Start opens the stream. Errors are fatal startup errors.
	Start(ctx context.Context) error

	// Stop closes the stream and releases backend resources.
	Stop() error

	// IsActive reports whether the stream is currently delivering audio
	IsActive() bool

	// TryRead returns the next available chunk or false when none is ready
	TryRead() (*AudioChunk, bool)

	// Config returns the negotiated stream configuration
	Config() DeviceConfig
}
