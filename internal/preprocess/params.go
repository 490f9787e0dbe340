// Package preprocess decodes audio and conditions it for speech recognition.
//
// Conditioning runs two energy-gated passes over 20 ms frames: Prefilter
// removes interior silence and Trim removes edge silence. Both adapt their
// threshold to the clip's own noise floor instead of using a fixed level.
package preprocess

// TargetSampleRate is the rate the recognition backend expects.
const TargetSampleRate = 16000

// Params holds every threshold used by Prefilter and Trim.
type Params struct {
	FrameMS int

	// NoisePercentile selects the noise floor from sorted frame energies.
	NoisePercentile  float64
	SpeechFactor     float64
	SpeechMinimum    float64
	TailWindowMS     int
	TailFactor       float64
	TailMinimum      float64
	MedianMinFrames  int
	DynamicWindowMS  int
	DynamicMinTailMS int
	DynamicDropRatio float64

	// Prefilter.
	MinSpeechMS  int
	SpeechPadMS  int
	MergeGapMS   int
	GapSilenceMS int

	// Trim.
	MinLeadingMS  int
	LeadingPadMS  int
	MinTrailingMS int
	TrailingPadMS int
}

// DefaultParams returns the tuned thresholds used for dictation audio.
func DefaultParams() Params {
	return Params{
		FrameMS:          20,
		NoisePercentile:  0.1,
		SpeechFactor:     2.5,
		SpeechMinimum:    0.002,
		TailWindowMS:     800,
		TailFactor:       2.0,
		TailMinimum:      0.0015,
		MedianMinFrames:  3,
		DynamicWindowMS:  200,
		DynamicMinTailMS: 300,
		DynamicDropRatio: 0.25,
		MinSpeechMS:      200,
		SpeechPadMS:      240,
		MergeGapMS:       800,
		GapSilenceMS:     120,
		MinLeadingMS:     300,
		LeadingPadMS:     200,
		MinTrailingMS:    400,
		TrailingPadMS:    240,
	}
}

// frames converts a duration to a whole number of frames, rounding up.
func (p Params) frames(ms int) int {
	if p.FrameMS <= 0 {
		return 0
	}
	return (ms + p.FrameMS - 1) / p.FrameMS
}
