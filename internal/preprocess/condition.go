package preprocess

import (
	"context"
	"fmt"
)

// Stats summarizes one conditioning run.
type Stats struct {
	SourceRate     int
	SourceSamples  int
	Resampled      bool
	Prefiltered    bool
	Trimmed        bool
	Prefilter      PrefilterStats
	Trim           TrimStats
	OutputSamples  int
	OutputDuration float64
}

// Silent reports whether conditioning left nothing to recognize.
func (s Stats) Silent() bool {
	return s.OutputSamples == 0
}

// Condition resamples mono samples to TargetSampleRate and runs Prefilter
// followed by Trim. An empty result means the clip held no speech and the
// recognizer must not be called.
func Condition(samples []float32, sampleRate int, p Params) ([]float32, Stats, error) {
	stats := Stats{SourceRate: sampleRate, SourceSamples: len(samples)}

	pcm, err := Resample(samples, sampleRate)
	if err != nil {
		return nil, stats, err
	}
	stats.Resampled = sampleRate != TargetSampleRate

	pcm, stats.Prefilter, stats.Prefiltered = Prefilter(pcm, TargetSampleRate, p)
	if len(pcm) > 0 {
		pcm, stats.Trim, stats.Trimmed = Trim(pcm, TargetSampleRate, p)
	}

	stats.OutputSamples = len(pcm)
	stats.OutputDuration = float64(len(pcm)) / TargetSampleRate
	return pcm, stats, nil
}

// Load decodes path and conditions it for recognition.
func Load(ctx context.Context, dec Decoder, path string, p Params) ([]float32, Stats, error) {
	audio, err := dec.Decode(ctx, path)
	if err != nil {
		return nil, Stats{}, err
	}
	pcm, stats, err := Condition(audio.Samples, audio.SampleRate, p)
	if err != nil {
		return nil, stats, fmt.Errorf("condition %q: %w", path, err)
	}
	return pcm, stats, nil
}
