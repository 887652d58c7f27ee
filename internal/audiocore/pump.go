package audiocore

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/audiopulse/internal/logging"
)

// PumpRecorder receives producer-side counters. Implementations must not block.
type PumpRecorder interface {
	RecordChunkPushed(samples int)
	RecordChunksDropped(n uint64)
}

// Pump is the producer context for devices that are polled rather than pushing
// from a callback. It moves every chunk the device has ready into the ring
// buffer, then waits for the next poll tick.
type Pump struct {
	device   CaptureDevice
	ring     *SampleRingBuffer
	interval time.Duration
	recorder PumpRecorder
	logger   *slog.Logger

	dropLimiter  *rate.Limiter
	lastDropped  uint64
	pushedChunks uint64
}

// PumpOption configures a Pump.
type PumpOption func(*Pump)

// WithPumpInterval sets the device poll interval.
func WithPumpInterval(d time.Duration) PumpOption {
	return func(p *Pump) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithPumpRecorder attaches a metrics recorder.
func WithPumpRecorder(r PumpRecorder) PumpOption {
	return func(p *Pump) {
		p.recorder = r
	}
}

// NewPump creates a pump moving chunks from device into ring.
func NewPump(device CaptureDevice, ring *SampleRingBuffer, opts ...PumpOption) *Pump {
	logger := logging.ForService("audiocore")
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pump{
		device:      device,
		ring:        ring,
		interval:    DefaultPumpInterval,
		logger:      logger.With("component", "pump"),
		dropLimiter: rate.NewLimiter(rate.Every(DefaultDropLogInterval), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls the device until ctx is cancelled. It returns nil on cancellation
// and ErrDeviceNotActive when the device was never started.
func (p *Pump) Run(ctx context.Context) error {
	if !p.device.IsActive() {
		return ErrDeviceNotActive
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Debug("pump started", "interval", p.interval)
	defer p.logger.Debug("pump stopped", "chunks_pushed", p.pushedChunks, "chunks_dropped", p.ring.Dropped())

	for {
		p.drain()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// drain pushes every chunk the device has ready.
func (p *Pump) drain() {
	var moved int
	for {
		chunk, ok := p.device.TryRead()
		if !ok {
			break
		}
		if !p.ring.Push(chunk) {
			continue
		}
		moved++
		p.pushedChunks++
		if p.recorder != nil {
			p.recorder.RecordChunkPushed(len(chunk.Samples))
		}
	}

	if moved > 0 {
		logging.Trace(p.logger, "device drained", "chunks", moved, "ring_len", p.ring.Len())
	}
	p.reportDrops()
}

// reportDrops forwards new evictions to the recorder and logs a rate-limited warning.
func (p *Pump) reportDrops() {
	dropped := p.ring.Dropped()
	if dropped == p.lastDropped {
		return
	}
	delta := dropped - p.lastDropped
	p.lastDropped = dropped

	if p.recorder != nil {
		p.recorder.RecordChunksDropped(delta)
	}
	if p.dropLimiter.Allow() {
		p.logger.Warn("ring buffer overflow, oldest chunks evicted",
			"dropped", delta,
			"dropped_total", dropped,
			"capacity", p.ring.Capacity())
	}
}
