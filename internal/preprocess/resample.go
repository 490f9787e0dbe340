package preprocess

import (
	"fmt"
	"math"
	"sync"
)

const (
	sincTaps       = 128
	sincCutoff     = 0.95
	sincOversample = 128
)

// Resample converts mono samples at fromRate to TargetSampleRate with a
// Blackman-Harris windowed sinc kernel. Input already at the target rate is
// returned unchanged.
func Resample(samples []float32, fromRate int) ([]float32, error) {
	if fromRate == TargetSampleRate {
		return samples, nil
	}
	if fromRate <= 0 {
		return nil, fmt.Errorf("resample: invalid source rate %d", fromRate)
	}
	if len(samples) == 0 {
		return []float32{}, nil
	}

	ratio := float64(TargetSampleRate) / float64(fromRate)
	cutoff := sincCutoff * math.Min(1, ratio)
	kernel := kernelFor(cutoff)
	half := sincTaps / 2

	outLen := int(math.Round(float64(len(samples)) * ratio))
	out := make([]float32, outLen)
	step := float64(fromRate) / float64(TargetSampleRate)
	for j := range out {
		t := float64(j) * step
		center := int(math.Floor(t))
		lo := max(center-half+1, 0)
		hi := min(center+half, len(samples)-1)
		var acc float64
		for k := lo; k <= hi; k++ {
			acc += float64(samples[k]) * kernel.at(math.Abs(t-float64(k)))
		}
		out[j] = float32(acc)
	}
	return out, nil
}

// sincKernel is an oversampled half kernel read with linear interpolation.
type sincKernel struct {
	values []float64
}

var (
	kernelMu    sync.Mutex
	kernelCache = map[float64]sincKernel{}
)

func kernelFor(cutoff float64) sincKernel {
	kernelMu.Lock()
	defer kernelMu.Unlock()
	if k, ok := kernelCache[cutoff]; ok {
		return k
	}

	half := sincTaps / 2
	n := half*sincOversample + 2
	values := make([]float64, n)
	for i := range values {
		d := float64(i) / sincOversample
		values[i] = cutoff * sinc(cutoff*d) * blackmanHarris(d/float64(half))
	}
	k := sincKernel{values: values}
	kernelCache[cutoff] = k
	return k
}

func (k sincKernel) at(distance float64) float64 {
	pos := distance * sincOversample
	i := int(pos)
	if i+1 >= len(k.values) {
		return 0
	}
	frac := pos - float64(i)
	return k.values[i]*(1-frac) + k.values[i+1]*frac
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackmanHarris is the four-term window centered on zero, with x in [0, 1]
// measured from the center to the edge.
func blackmanHarris(x float64) float64 {
	if x >= 1 {
		return 0
	}
	const (
		a0 = 0.35875
		a1 = 0.48829
		a2 = 0.14128
		a3 = 0.01168
	)
	return a0 + a1*math.Cos(math.Pi*x) + a2*math.Cos(2*math.Pi*x) + a3*math.Cos(3*math.Pi*x)
}
