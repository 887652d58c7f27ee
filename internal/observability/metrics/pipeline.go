// Package metrics provides Prometheus metrics for the capture and render pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics counts what moves through the pipeline. It satisfies the
// pump and scheduler recorder interfaces; every method is safe to call from
// the capture and render goroutines.
type PipelineMetrics struct {
	registry *prometheus.Registry

	// Render side
	framesTotal      prometheus.Counter
	overrunsTotal    prometheus.Counter
	beatsTotal       prometheus.Counter
	frameDuration    prometheus.Histogram
	analysisDuration prometheus.Histogram

	// Capture side
	chunksPushed  prometheus.Counter
	samplesPushed prometheus.Counter
	chunksDropped prometheus.Counter

	errorsTotal *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.framesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "frames_total",
		Help:      "Total number of rendered frames",
	})

	m.overrunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "frame_overruns_total",
		Help:      "Frames whose work exceeded the frame interval",
	})

	m.beatsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "beats_total",
		Help:      "Total number of detected beats",
	})

	m.frameDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "frame_duration_seconds",
		Help:      "Time spent on one frame's work, excluding sleep",
		Buckets:   prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12), // 0.1ms to ~400ms
	})

	m.analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Time spent analysing the audio of one frame",
		Buckets:   prometheus.ExponentialBuckets(BucketStart10us, BucketFactor2, BucketCount12),
	})

	m.chunksPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "chunks_pushed_total",
		Help:      "Audio chunks moved from the device into the ring buffer",
	})

	m.samplesPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "samples_pushed_total",
		Help:      "Interleaved samples moved into the ring buffer",
	})

	m.chunksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "chunks_dropped_total",
		Help:      "Oldest chunks evicted because the ring buffer was full",
	})

	m.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "errors_total",
		Help:      "Errors built by the application, by component and category",
	}, []string{"component", "category"})

	m.collectors = []prometheus.Collector{
		m.framesTotal,
		m.overrunsTotal,
		m.beatsTotal,
		m.frameDuration,
		m.analysisDuration,
		m.chunksPushed,
		m.samplesPushed,
		m.chunksDropped,
		m.errorsTotal,
	}
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// ObserveRing exports the ring buffer depth and capacity, sampled at scrape time
func (m *PipelineMetrics) ObserveRing(depth func() int, capacity int) error {
	depthGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "ring_depth_chunks",
		Help:      "Chunks waiting in the ring buffer",
	}, func() float64 { return float64(depth()) })

	capacityGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "ring_capacity_chunks",
		Help:      "Ring buffer capacity",
	})
	capacityGauge.Set(float64(capacity))

	if err := m.registry.Register(depthGauge); err != nil {
		return err
	}
	return m.registry.Register(capacityGauge)
}

// RecordFrame records one frame's work duration
func (m *PipelineMetrics) RecordFrame(duration time.Duration, overrun bool) {
	m.framesTotal.Inc()
	m.frameDuration.Observe(duration.Seconds())
	if overrun {
		m.overrunsTotal.Inc()
	}
}

// RecordAnalysis records the time spent analysing one frame
func (m *PipelineMetrics) RecordAnalysis(duration time.Duration) {
	m.analysisDuration.Observe(duration.Seconds())
}

// RecordBeat counts a detected beat
func (m *PipelineMetrics) RecordBeat() {
	m.beatsTotal.Inc()
}

// RecordChunkPushed counts a chunk moved into the ring buffer
func (m *PipelineMetrics) RecordChunkPushed(samples int) {
	m.chunksPushed.Inc()
	m.samplesPushed.Add(float64(samples))
}

// RecordChunksDropped counts chunks evicted from the ring buffer
func (m *PipelineMetrics) RecordChunksDropped(n uint64) {
	m.chunksDropped.Add(float64(n))
}

// RecordError counts an error by component and category
func (m *PipelineMetrics) RecordError(component, category string) {
	if component == "" {
		component = "unknown"
	}
	m.errorsTotal.WithLabelValues(component, category).Inc()
}
