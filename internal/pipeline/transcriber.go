// Package pipeline turns one audio file into transcript text: decode,
// condition, recognize.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rbright/dictate/internal/inference"
	"github.com/rbright/dictate/internal/logging"
	"github.com/rbright/dictate/internal/metrics"
	"github.com/rbright/dictate/internal/preprocess"
)

// Recognizer is the inference step. *inference.Invoker satisfies it.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []float32, opts inference.Options) (inference.Result, error)
}

// Result describes one finished file transcription.
type Result struct {
	Text      string
	Silent    bool
	Audio     preprocess.Stats
	Inference inference.Result
	Elapsed   time.Duration
}

// Transcriber owns the per-file decode -> condition -> recognize flow.
type Transcriber struct {
	Decoder    preprocess.Decoder
	Params     preprocess.Params
	Recognizer Recognizer
	Prompt     string
	Language   string
	DumpAudio  bool
	Logger     *slog.Logger
}

// TranscribeFile transcribes path. A clip with no speech returns an empty,
// Silent result without invoking the recognizer.
func (t *Transcriber) TranscribeFile(ctx context.Context, path string, progress func(int)) (Result, error) {
	started := time.Now()
	params := t.Params
	if params == (preprocess.Params{}) {
		params = preprocess.DefaultParams()
	}

	samples, stats, err := preprocess.Load(ctx, t.Decoder, path, params)
	if err != nil {
		return Result{}, fmt.Errorf("load audio: %w", err)
	}
	logger := t.logger().With("path", path)
	logger.Debug("audio conditioned",
		"source_rate", stats.SourceRate,
		"source_samples", stats.SourceSamples,
		"prefilter_segments", stats.Prefilter.Segments,
		"output_sec", stats.OutputDuration,
	)
	t.writeDebugAudio(samples)

	if stats.Silent() {
		logger.Info("no speech detected; skipping inference")
		return Result{Silent: true, Audio: stats, Elapsed: time.Since(started)}, nil
	}
	if t.Recognizer == nil {
		return Result{}, inference.ErrNoBackend
	}

	res, err := t.Recognizer.Transcribe(ctx, samples, inference.Options{
		Prompt:   t.Prompt,
		Language: t.Language,
		Progress: progress,
	})
	if err != nil {
		return Result{}, err
	}
	metrics.RecordInference(string(res.Path), string(res.Fallback))

	return Result{
		Text:      res.Text,
		Silent:    res.Text == "",
		Audio:     stats,
		Inference: res,
		Elapsed:   time.Since(started),
	}, nil
}

func (t *Transcriber) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return logging.Discard()
}

// writeDebugAudio dumps the conditioned audio when debug.audio_dump is set.
func (t *Transcriber) writeDebugAudio(samples []float32) {
	if !t.DumpAudio || len(samples) == 0 {
		return
	}
	path, err := debugPath("audio", "wav")
	if err != nil {
		t.logger().Warn("unable to create debug audio dump", "error", err.Error())
		return
	}
	if err := preprocess.WriteWAV(path, samples, preprocess.TargetSampleRate); err != nil {
		t.logger().Warn("unable to write debug audio dump", "error", err.Error())
		return
	}
	t.logger().Debug("debug audio dump written", "dump", path)
}

// debugPath returns a timestamped file path under <state>/debug.
func debugPath(prefix string, extension string) (string, error) {
	stateDir, err := logging.StateDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create debug dir: %w", err)
	}
	timestamp := time.Now().Format("20060102-150405.000")
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension)), nil
}
