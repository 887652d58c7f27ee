package audiocore

// Merge coalesces chunks into a single chunk in arrival order. Chunks whose
// format differs from the newest chunk are skipped, so a format change mid
// frame keeps only the audio in the current format. The merged chunk carries
// the timestamp of the newest chunk.
//
// A single chunk is returned as-is; an empty input returns nil.
func Merge(chunks []*AudioChunk) *AudioChunk {
	switch len(chunks) {
	case 0:
		return nil
	case 1:
		return chunks[0]
	}

	newest := chunks[len(chunks)-1]
	if newest == nil {
		return Merge(chunks[:len(chunks)-1])
	}

	total := 0
	for _, c := range chunks {
		if sameFormat(c, newest) {
			total += len(c.Samples)
		}
	}

	merged := &AudioChunk{
		Samples:    make([]float32, 0, total),
		SampleRate: newest.SampleRate,
		Channels:   newest.Channels,
		Timestamp:  newest.Timestamp,
	}
	for _, c := range chunks {
		if sameFormat(c, newest) {
			merged.Samples = append(merged.Samples, c.Samples...)
		}
	}

	return merged
}

func sameFormat(a, b *AudioChunk) bool {
	return a != nil && b != nil && a.SampleRate == b.SampleRate && a.Channels == b.Channels
}
