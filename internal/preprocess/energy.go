package preprocess

import (
	"math"
	"sort"
)

// fullScale is the largest mean absolute amplitude a float sample can have.
const fullScale = 1.0

// analysis is the per-clip energy profile shared by Prefilter and Trim.
type analysis struct {
	frameLen      int
	energies      []float64
	noiseFloor    float64
	threshold     float64
	tailStart     int
	tailThreshold float64
	// dynamicTail is the frame where a sustained energy drop begins, or -1.
	dynamicTail int
}

func analyze(samples []float32, sampleRate int, p Params) (analysis, bool) {
	if len(samples) == 0 || sampleRate <= 0 {
		return analysis{}, false
	}
	frameLen := sampleRate * p.FrameMS / 1000
	if frameLen <= 0 {
		return analysis{}, false
	}

	energies := frameEnergies(samples, frameLen)
	if len(energies) == 0 {
		return analysis{}, false
	}

	floor := noiseFloor(energies, p.NoisePercentile)
	threshold := math.Max(floor*p.SpeechFactor, p.SpeechMinimum)
	tailFrames := p.frames(p.TailWindowMS)
	tailStart := len(energies) - tailFrames
	if tailStart < 0 {
		tailStart = 0
	}

	a := analysis{
		frameLen:      frameLen,
		energies:      energies,
		noiseFloor:    floor,
		threshold:     threshold,
		tailStart:     tailStart,
		tailThreshold: math.Max(floor*p.TailFactor, p.TailMinimum),
		dynamicTail:   -1,
	}
	// A floor so loud that the threshold lies above full scale can never be
	// crossed; such a clip is all signal, not all silence. Quieter steady
	// noise keeps the normal threshold and comes out empty.
	if floor*p.SpeechFactor > fullScale {
		a.threshold = floor
		a.tailThreshold = math.Min(a.tailThreshold, floor)
	}
	if ref, ok := speechMedian(energies, a.threshold, p.MedianMinFrames); ok {
		if start, ok := dynamicTailStart(energies, p, ref); ok {
			a.dynamicTail = start
		}
	}
	return a, true
}

// frameThreshold relaxes the threshold inside the trailing window so decaying
// final syllables are not clipped.
func (a analysis) frameThreshold(idx int) float64 {
	if idx >= a.tailStart {
		return a.tailThreshold
	}
	return a.threshold
}

func (a analysis) numFrames() int {
	return len(a.energies)
}

// frameEnergies returns the mean absolute amplitude of each frame. The last
// frame may be shorter than frameLen.
func frameEnergies(samples []float32, frameLen int) []float64 {
	numFrames := (len(samples) + frameLen - 1) / frameLen
	energies := make([]float64, numFrames)
	for i := range energies {
		start := i * frameLen
		end := min(start+frameLen, len(samples))
		var sum float64
		for _, s := range samples[start:end] {
			sum += math.Abs(float64(s))
		}
		energies[i] = sum / float64(end-start)
	}
	return energies
}

func noiseFloor(energies []float64, percentile float64) float64 {
	sorted := append([]float64(nil), energies...)
	sort.Float64s(sorted)
	idx := int(math.Round(float64(len(sorted)-1) * percentile))
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// speechMedian is the median energy of frames at or above threshold. Too few
// speech frames give no reference.
func speechMedian(energies []float64, threshold float64, minFrames int) (float64, bool) {
	speech := make([]float64, 0, len(energies))
	for _, e := range energies {
		if e >= threshold {
			speech = append(speech, e)
		}
	}
	if len(speech) < minFrames || len(speech) == 0 {
		return 0, false
	}
	sort.Float64s(speech)
	return speech[len(speech)/2], true
}

// dynamicTailStart scans backwards for the last window whose average energy
// still reaches DynamicDropRatio of the speech reference. The frame after
// that window starts the tail, which must be at least DynamicMinTailMS long.
func dynamicTailStart(energies []float64, p Params, speechRef float64) (int, bool) {
	numFrames := len(energies)
	if numFrames == 0 || speechRef <= 0 {
		return 0, false
	}
	window := min(max(p.frames(p.DynamicWindowMS), 3), numFrames)
	minTail := p.frames(p.DynamicMinTailMS)
	if numFrames < window+minTail {
		return 0, false
	}

	prefix := make([]float64, numFrames+1)
	for i, e := range energies {
		prefix[i+1] = prefix[i] + e
	}

	threshold := speechRef * p.DynamicDropRatio
	for i := numFrames - window; i >= 0; i-- {
		avg := (prefix[i+window] - prefix[i]) / float64(window)
		if avg < threshold {
			continue
		}
		start := i + window
		if numFrames-start < minTail {
			return 0, false
		}
		return start, true
	}
	return 0, false
}
