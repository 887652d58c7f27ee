package audiocore

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiopulse/internal/errors"
	"github.com/tphakala/audiopulse/internal/logging"
)

// queueDevice is a CaptureDevice serving a fixed list of chunks.
type queueDevice struct {
	mu     sync.Mutex
	chunks []*AudioChunk
	reads  atomic.Int32
}

func (d *queueDevice) Start(context.Context) error { return nil }
func (d *queueDevice) Stop() error                 { return nil }
func (d *queueDevice) IsActive() bool              { return true }
func (d *queueDevice) Config() DeviceConfig        { return DeviceConfig{SampleRate: 44100, Channels: 1} }

func (d *queueDevice) TryRead() (*AudioChunk, bool) {
	d.reads.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.chunks) == 0 {
		return nil, false
	}
	c := d.chunks[0]
	d.chunks = d.chunks[1:]
	return c, true
}

type countingRecorder struct {
	pushed  atomic.Int64
	samples atomic.Int64
	dropped atomic.Uint64
}

func (r *countingRecorder) RecordChunkPushed(samples int) {
	r.pushed.Add(1)
	r.samples.Add(int64(samples))
}

func (r *countingRecorder) RecordChunksDropped(n uint64) { r.dropped.Add(n) }

func TestPump_MovesChunksInOrder(t *testing.T) {
	t.Parallel()

	dev := &queueDevice{}
	for i := range 10 {
		dev.chunks = append(dev.chunks, seqChunk(i))
	}
	ring := NewSampleRingBuffer(16)
	rec := &countingRecorder{}
	pump := NewPump(dev, ring, WithPumpInterval(time.Millisecond), WithPumpRecorder(rec))

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- pump.Run(ctx) }()

	require.Eventually(t, func() bool { return ring.Len() == 10 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	for i := range 10 {
		c, ok := ring.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, seqOf(t, c))
	}
	assert.Equal(t, int64(10), rec.pushed.Load())
	assert.Equal(t, int64(10), rec.samples.Load())
	assert.Zero(t, rec.dropped.Load())
}

func TestPump_ReportsOverflow(t *testing.T) {
	t.Parallel()

	dev := &queueDevice{}
	for i := range 12 {
		dev.chunks = append(dev.chunks, seqChunk(i))
	}
	ring := NewSampleRingBuffer(4)
	rec := &countingRecorder{}
	pump := NewPump(dev, ring, WithPumpRecorder(rec))

	pump.drain()

	assert.Equal(t, uint64(8), ring.Dropped())
	assert.Equal(t, uint64(8), rec.dropped.Load())
	assert.Equal(t, int64(12), rec.pushed.Load())

	// Nothing new: no further drop reports
	pump.drain()
	assert.Equal(t, uint64(8), rec.dropped.Load())
}

func TestPump_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	dev := &queueDevice{}
	pump := NewPump(dev, NewSampleRingBuffer(4))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.NoError(t, pump.Run(ctx))
	assert.GreaterOrEqual(t, dev.reads.Load(), int32(1), "drains once before observing cancellation")
}

func TestPump_TracesDrainedChunks(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	dev := &queueDevice{chunks: []*AudioChunk{seqChunk(0), seqChunk(1)}}
	pump := NewPump(dev, NewSampleRingBuffer(4))
	pump.logger = slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: logging.LevelTrace}))

	pump.drain()
	assert.Contains(t, out.String(), "device drained")
	assert.Contains(t, out.String(), "chunks=2")

	// An empty drain stays quiet
	out.Reset()
	pump.drain()
	assert.Zero(t, out.Len())
}

// stoppedDevice reports itself inactive
type stoppedDevice struct{ queueDevice }

func (d *stoppedDevice) IsActive() bool { return false }

func TestPump_RejectsInactiveDevice(t *testing.T) {
	t.Parallel()

	dev := &stoppedDevice{}
	pump := NewPump(dev, NewSampleRingBuffer(4))

	err := pump.Run(t.Context())
	require.ErrorIs(t, err, ErrDeviceNotActive)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	assert.Zero(t, dev.reads.Load())
}
