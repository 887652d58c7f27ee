package analysis

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// BeatState is the detector state at a point in time.
type BeatState int

const (
	// BeatArmed means the next qualifying onset fires
	BeatArmed BeatState = iota
	// BeatCoolingDown means a beat fired less than Cooldown ago
	BeatCoolingDown
)

func (s BeatState) String() string {
	if s == BeatCoolingDown {
		return "cooling_down"
	}
	return "armed"
}

// BeatDetector flags onsets in an energy stream. A beat fires when the current
// energy exceeds the recent average by 1.5/sensitivity, clears an absolute
// floor, and the detector is armed. The energy is added to history after the
// decision.
type BeatDetector struct {
	cfg BeatConfig

	history []float64
	next    int
	filled  int

	lastBeat time.Time
	fired    bool
}

// NewBeatDetector creates a detector. Negative or missing fields fall back to
// defaults; a zero Cooldown or MinimumEnergy is kept and disables that check.
func NewBeatDetector(cfg BeatConfig) *BeatDetector {
	if cfg.Sensitivity <= 0 {
		cfg.Sensitivity = DefaultSensitivity
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MinimumEnergy < 0 {
		cfg.MinimumEnergy = DefaultMinimumEnergy
	}
	if cfg.HistorySize < 1 {
		cfg.HistorySize = DefaultHistorySize
	}

	return &BeatDetector{
		cfg:     cfg,
		history: make([]float64, cfg.HistorySize),
	}
}

// Detect evaluates energy observed at time at and reports whether a beat fired.
func (d *BeatDetector) Detect(energy float64, at time.Time) bool {
	beat := d.filled > 0 &&
		d.State(at) == BeatArmed &&
		energy > d.cfg.MinimumEnergy &&
		energy > d.average()*beatThresholdRatio/d.cfg.Sensitivity

	if beat {
		d.lastBeat = at
		d.fired = true
	}

	d.record(energy)
	return beat
}

// State reports whether the detector is armed at time at.
func (d *BeatDetector) State(at time.Time) BeatState {
	if d.fired && at.Sub(d.lastBeat) < d.cfg.Cooldown {
		return BeatCoolingDown
	}
	return BeatArmed
}

// Reset clears the energy history and cooldown.
func (d *BeatDetector) Reset() {
	clear(d.history)
	d.next = 0
	d.filled = 0
	d.fired = false
	d.lastBeat = time.Time{}
}

func (d *BeatDetector) average() float64 {
	return stat.Mean(d.history[:d.filled], nil)
}

func (d *BeatDetector) record(energy float64) {
	d.history[d.next] = energy
	d.next = (d.next + 1) % len(d.history)
	if d.filled < len(d.history) {
		d.filled++
	}
}
