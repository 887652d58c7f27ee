package audiocore

import "time"

// Pacer releases frames at a fixed sample rate against a clock. Sources that
// are not driven by hardware (files, generators) use it so they deliver audio
// no faster than a soundcard would.
type Pacer struct {
	rate    int
	now     func() time.Time
	start   time.Time
	emitted int64
}

// NewPacer creates a pacer for rate frames per second. A nil now uses time.Now.
func NewPacer(rate int, now func() time.Time) *Pacer {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if now == nil {
		now = time.Now
	}
	return &Pacer{rate: rate, now: now}
}

// Begin restarts the pacing timeline at the current time
func (p *Pacer) Begin() {
	p.start = p.now()
	p.emitted = 0
}

// Due returns how many frames may be emitted now
func (p *Pacer) Due() int {
	elapsed := p.now().Sub(p.start)
	if elapsed <= 0 {
		return 0
	}
	rate := int64(p.rate)
	allowed := int64(elapsed/time.Second)*rate + int64(elapsed%time.Second)*rate/int64(time.Second)
	if allowed <= p.emitted {
		return 0
	}
	return int(allowed - p.emitted)
}

// Timestamp returns the capture time of the next frame to be emitted
func (p *Pacer) Timestamp() time.Time {
	// Split whole seconds off first; emitted*time.Second overflows after
	// about 53 hours at 48 kHz.
	rate := int64(p.rate)
	secs := p.emitted / rate
	rem := p.emitted % rate
	return p.start.Add(time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(rate))
}

// Advance records that frames were emitted
func (p *Pacer) Advance(frames int) {
	p.emitted += int64(frames)
}
