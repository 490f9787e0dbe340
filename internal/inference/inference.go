// Package inference runs speech recognition over conditioned PCM with an
// accelerated attempt first and a CPU-only fallback.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// LanguageAuto asks the backend to detect the spoken language.
const LanguageAuto = "auto"

// DefaultLanguage is what the backend decodes when no language is given.
const DefaultLanguage = "en"

// ErrNoBackend is returned when an Invoker has no backend factory.
var ErrNoBackend = errors.New("no recognition backend configured")

// Path names the execution path that produced a result.
type Path string

const (
	PathAccelerated Path = "accelerated"
	PathCPU         Path = "cpu"
)

// Segment is one span of recognized text.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// DecodeParams are the fixed sampling and robustness settings.
type DecodeParams struct {
	BeamSize          int
	Temperature       float64
	TemperatureInc    float64
	LogprobThreshold  float64
	EntropyThreshold  float64
	NoSpeechThreshold float64
}

// DefaultDecodeParams returns beam search settings tuned to suppress
// hallucinated text on short dictation clips.
func DefaultDecodeParams() DecodeParams {
	return DecodeParams{
		BeamSize:          5,
		Temperature:       0,
		TemperatureInc:    0.2,
		LogprobThreshold:  -1.0,
		EntropyThreshold:  2.4,
		NoSpeechThreshold: 0.6,
	}
}

// Request is one recognition attempt.
type Request struct {
	// Samples are mono float PCM at 16 kHz.
	Samples []float32
	// Prompt is an initial prompt, empty for none.
	Prompt string
	// Language is a base language code, LanguageAuto, or empty for the
	// backend default.
	Language string
	Threads  int
	Params   DecodeParams
	// Progress, when set, receives percentages from any goroutine.
	Progress func(percent int)
}

// Backend recognizes a single request.
type Backend interface {
	Recognize(ctx context.Context, req Request) ([]Segment, error)
}

// Factory constructs a backend for one attempt on the given path. Backends
// that implement io.Closer are closed when the attempt ends.
type Factory func(ctx context.Context, path Path) (Backend, error)

// NormalizeLanguage maps a configured language to the value sent to the
// backend: empty stays empty, "auto" selects detection, and anything else
// must parse as a BCP 47 tag and is reduced to its base language.
func NormalizeLanguage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.EqualFold(raw, LanguageAuto) {
		return LanguageAuto, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", raw, err)
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", fmt.Errorf("invalid language %q", raw)
	}
	return base.String(), nil
}

// JoinSegments concatenates segment text and trims the result.
func JoinSegments(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
	}
	return strings.TrimSpace(b.String())
}
