package visualizer

import (
	"log/slog"
	"time"

	"github.com/tphakala/audiopulse/internal/analysis"
	"github.com/tphakala/audiopulse/internal/logging"
)

// DefaultLogInterval is how often the log visualizer emits a summary
const DefaultLogInterval = 5 * time.Second

// Log summarises parameters to a structured logger at a fixed interval.
// It is meant for headless runs where no terminal is attached.
type Log struct {
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	start  time.Time
	frames int
	beats  int
	sum    analysis.AudioParameters
	peak   float64
}

// NewLog creates a log visualizer. A nil logger uses the visualizer service logger.
func NewLog(logger *slog.Logger, interval time.Duration) *Log {
	if logger == nil {
		logger = logging.ForService("visualizer")
		if logger == nil {
			logger = slog.Default()
		}
	}
	if interval <= 0 {
		interval = DefaultLogInterval
	}
	return &Log{
		logger:   logger.With("component", "log_visualizer"),
		interval: interval,
		now:      time.Now,
	}
}

// Update accumulates params and logs a summary once the interval has passed
func (l *Log) Update(params analysis.AudioParameters) {
	now := l.now()
	if l.start.IsZero() {
		l.start = now
	}

	l.frames++
	if params.Beat {
		l.beats++
	}
	l.sum.Bass += params.Bass
	l.sum.Mid += params.Mid
	l.sum.Treble += params.Treble
	l.sum.Amplitude += params.Amplitude
	l.peak = max(l.peak, params.Amplitude)

	if now.Sub(l.start) < l.interval {
		return
	}

	n := float64(l.frames)
	l.logger.Info("audio summary",
		"frames", l.frames,
		"beats", l.beats,
		"bass", l.sum.Bass/n,
		"mid", l.sum.Mid/n,
		"treble", l.sum.Treble/n,
		"amplitude", l.sum.Amplitude/n,
		"peak_amplitude", l.peak)

	l.start = now
	l.frames = 0
	l.beats = 0
	l.sum = analysis.AudioParameters{}
	l.peak = 0
}
