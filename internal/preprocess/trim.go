package preprocess

// TrimStats describes what Trim removed.
type TrimStats struct {
	LeadingSamples  int
	TrailingSamples int
	LeadingFrames   int
	TrailingFrames  int
	Threshold       float64
	NoiseFloor      float64
}

// Trimmed is the total number of samples removed.
func (s TrimStats) Trimmed() int {
	return s.LeadingSamples + s.TrailingSamples
}

// Trim removes leading and trailing silence, leaving interior audio alone.
//
// Leading silence of at least MinLeadingMS is cut back to LeadingPadMS and
// trailing silence of at least MinTrailingMS to TrailingPadMS. The trailing
// edge honors the relaxed tail threshold and the dynamic tail. A clip with
// no frame above threshold is emptied.
func Trim(samples []float32, sampleRate int, p Params) ([]float32, TrimStats, bool) {
	a, ok := analyze(samples, sampleRate, p)
	if !ok {
		return samples, TrimStats{}, false
	}
	numFrames := a.numFrames()
	stats := TrimStats{Threshold: a.threshold, NoiseFloor: a.noiseFloor}

	first, last := -1, -1
	for idx, energy := range a.energies {
		if energy >= a.frameThreshold(idx) {
			if first < 0 {
				first = idx
			}
			last = idx
		}
	}
	if first < 0 {
		stats.LeadingSamples = len(samples)
		stats.LeadingFrames = numFrames
		return samples[:0], stats, true
	}

	minLeading := p.frames(p.MinLeadingMS)
	minTrailing := p.frames(p.MinTrailingMS)
	padBefore := p.frames(p.LeadingPadMS)
	padAfter := p.frames(p.TrailingPadMS)

	stats.LeadingFrames = first
	stats.TrailingFrames = numFrames - (last + 1)

	startFrame := 0
	if stats.LeadingFrames >= minLeading {
		startFrame = max(first-padBefore, 0)
	}
	endFrame := numFrames
	if stats.TrailingFrames >= minTrailing {
		endFrame = min(last+1+padAfter, numFrames)
	}
	if a.dynamicTail >= 0 {
		tailStart := max(a.dynamicTail, last+1)
		if tailFrames := numFrames - tailStart; tailFrames >= minTrailing {
			stats.TrailingFrames = tailFrames
			endFrame = min(tailStart+padAfter, numFrames)
		}
	}

	if startFrame == 0 && endFrame == numFrames {
		return samples, stats, false
	}

	startSample := min(startFrame*a.frameLen, len(samples))
	endSample := min(endFrame*a.frameLen, len(samples))
	if startSample >= endSample {
		stats.LeadingSamples = len(samples)
		return samples[:0], stats, true
	}

	stats.LeadingSamples = startSample
	stats.TrailingSamples = len(samples) - endSample
	out := make([]float32, endSample-startSample)
	copy(out, samples[startSample:endSample])
	return out, stats, true
}
