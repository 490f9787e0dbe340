package preprocess

// PrefilterStats describes what Prefilter removed.
type PrefilterStats struct {
	RemovedSamples int
	KeptSamples    int
	Segments       int
	Threshold      float64
	NoiseFloor     float64
}

type frameRange struct {
	start int
	end   int // inclusive
}

// Prefilter removes interior non-speech from samples.
//
// Frames at or above the adaptive threshold form speech runs. Runs shorter
// than MinSpeechMS are dropped as noise spikes, survivors are padded and
// merged across short gaps, and the kept ranges are joined with GapSilenceMS
// of silence so the backend does not fuse words across a removed pause.
//
// It returns the conditioned samples and true when anything changed. When
// no speech run qualifies the result is empty. A single run covering the
// whole clip is reported as unchanged.
func Prefilter(samples []float32, sampleRate int, p Params) ([]float32, PrefilterStats, bool) {
	if sampleRate <= 0 {
		return samples, PrefilterStats{}, false
	}
	frameLen := sampleRate * p.FrameMS / 1000
	if frameLen <= 0 || len(samples) < frameLen*2 {
		return samples, PrefilterStats{}, false
	}

	a, ok := analyze(samples, sampleRate, p)
	if !ok {
		return samples, PrefilterStats{}, false
	}
	numFrames := a.numFrames()
	stats := PrefilterStats{Threshold: a.threshold, NoiseFloor: a.noiseFloor}

	minSpeech := p.frames(p.MinSpeechMS)
	pad := p.frames(p.SpeechPadMS)
	mergeGap := p.frames(p.MergeGapMS)

	var runs []frameRange
	runStart := -1
	closeRun := func(end int) {
		if end+1-runStart >= minSpeech {
			runs = append(runs, frameRange{start: runStart, end: end})
		}
		runStart = -1
	}
	for idx, energy := range a.energies {
		if energy >= a.frameThreshold(idx) {
			if runStart < 0 {
				runStart = idx
			}
			continue
		}
		if runStart >= 0 {
			closeRun(idx - 1)
		}
	}
	if runStart >= 0 {
		closeRun(numFrames - 1)
	}

	if len(runs) == 0 {
		stats.RemovedSamples = len(samples)
		return samples[:0], stats, true
	}

	merged := make([]frameRange, 0, len(runs))
	for _, r := range runs {
		padded := frameRange{
			start: max(r.start-pad, 0),
			end:   min(r.end+pad, numFrames-1),
		}
		if n := len(merged); n > 0 && padded.start <= merged[n-1].end+mergeGap {
			merged[n-1].end = max(merged[n-1].end, padded.end)
			continue
		}
		merged = append(merged, padded)
	}

	if a.dynamicTail >= 0 {
		last := &merged[len(merged)-1]
		tailStart := max(a.dynamicTail, last.end+1)
		if tailStart > last.end+1 {
			last.end = min(tailStart-1, numFrames-1)
		}
	}

	if len(merged) == 1 && merged[0].start == 0 && merged[0].end+1 >= numFrames {
		return samples, stats, false
	}

	gap := sampleRate * p.GapSilenceMS / 1000
	out := make([]float32, 0, len(samples))
	for i, r := range merged {
		startSample := min(r.start*frameLen, len(samples))
		endSample := min((r.end+1)*frameLen, len(samples))
		if startSample >= endSample {
			continue
		}
		out = append(out, samples[startSample:endSample]...)
		if i+1 < len(merged) && gap > 0 {
			out = append(out, make([]float32, gap)...)
		}
	}

	removed := len(samples) - len(out)
	if removed <= 0 {
		return samples, stats, false
	}
	stats.RemovedSamples = removed
	stats.KeptSamples = len(out)
	stats.Segments = len(merged)
	return out, stats, true
}
