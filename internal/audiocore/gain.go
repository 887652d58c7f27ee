package audiocore

// ApplyGain scales samples in place, clamping to [-1, 1]. A gain of 1 is a no-op.
func ApplyGain(samples []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i, s := range samples {
		s *= gain
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		samples[i] = s
	}
}
