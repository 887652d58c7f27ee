package audiocore

import "time"

// Ring buffer and pump defaults
const (
	// DefaultRingCapacity is the default number of chunk slots in the ring buffer
	DefaultRingCapacity = 8192

	// DefaultPumpInterval is how often the pump polls a device for new chunks
	DefaultPumpInterval = 2 * time.Millisecond

	// DefaultDropLogInterval limits how often the pump warns about evicted chunks
	DefaultDropLogInterval = 5 * time.Second
)

// Stream defaults used when a device or file does not specify them
const (
	DefaultSampleRate   = 44100
	DefaultChannels     = 1
	DefaultBufferFrames = 512
)
